package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/eo-schedule/corsproxy/internal/config"
)

// ServiceName 写入每条日志的 service 字段，便于与同机其他进程的日志区分。
const ServiceName = "corsproxy"

// 轮转参数未配置（零值）时使用的兜底值。
const (
	fallbackMaxSizeMB  = 100
	fallbackMaxBackups = 10
)

// InitLogger 构建代理使用的 JSON logger：cache_hit、cache_miss、serve_stale 等事件
// 都经由它输出，时间戳为 RFC3339Nano。日志文件不可写时退回 stdout 并记录一条
// logger_fallback 警告，不会阻止代理启动。
func InitLogger(cfg config.GlobalConfig) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("无法解析日志级别 %q: %w", cfg.LogLevel, err)
	}

	out, fallbackErr := openOutput(cfg)

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	logger.AddHook(serviceHook{})

	// retryablehttp 等直接使用全局 logrus 的代码也保持同样的格式与级别。
	logrus.SetFormatter(logger.Formatter)
	logrus.SetOutput(logger.Out)
	logrus.SetLevel(level)

	if fallbackErr != nil {
		fmt.Fprintf(os.Stderr, "logger_fallback: %v\n", fallbackErr)
		logger.WithFields(logrus.Fields{
			"action": "logger_fallback",
			"path":   cfg.LogFilePath,
		}).Warn(fallbackErr.Error())
	}
	return logger, nil
}

// openOutput 返回 stdout 或 lumberjack 轮转文件；目录无法创建时返回 stdout 与原因。
func openOutput(cfg config.GlobalConfig) (io.Writer, error) {
	if cfg.LogFilePath == "" {
		return os.Stdout, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogFilePath), 0o755); err != nil {
		return os.Stdout, fmt.Errorf("创建日志目录失败: %w", err)
	}

	maxSize, maxBackups := cfg.LogMaxSize, cfg.LogMaxBackups
	if maxSize <= 0 {
		maxSize = fallbackMaxSizeMB
	}
	if maxBackups <= 0 {
		maxBackups = fallbackMaxBackups
	}
	return &lumberjack.Logger{
		Filename:   cfg.LogFilePath,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		Compress:   cfg.LogCompress,
		LocalTime:  true,
	}, nil
}

// serviceHook 给每条日志补上 service 字段。
type serviceHook struct{}

func (serviceHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (serviceHook) Fire(entry *logrus.Entry) error {
	if _, ok := entry.Data["service"]; !ok {
		entry.Data["service"] = ServiceName
	}
	return nil
}
