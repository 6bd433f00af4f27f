package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/eo-schedule/corsproxy/internal/cache"
	"github.com/eo-schedule/corsproxy/internal/config"
	"github.com/eo-schedule/corsproxy/internal/logging"
	"github.com/eo-schedule/corsproxy/internal/proxy"
	"github.com/eo-schedule/corsproxy/internal/server"
	"github.com/eo-schedule/corsproxy/internal/server/routes"
	"github.com/eo-schedule/corsproxy/internal/telemetry"
	"github.com/eo-schedule/corsproxy/internal/upstream"
	"github.com/eo-schedule/corsproxy/internal/version"
)

const (
	serviceName       = "corsproxy"
	defaultConfigFile = "config.toml"
	shutdownTimeout   = 5 * time.Second
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["upstream"] = cfg.Upstream.URL
		fields["resource"] = cfg.Upstream.ResourcePath
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.Global.TraceEndpoint)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化链路追踪失败: %v\n", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.WithError(err).WithField("action", "shutdown").Warn("链路追踪关闭失败")
		}
	}()

	// 启动顺序：配置 → 上游客户端 → 缓存槽位 → Service → Fiber server，
	// 所有请求共享同一个缓存槽位与刷新合并器。
	httpClient := server.NewUpstreamClient(cfg)
	fetcher := upstream.NewClient(httpClient, cfg.Upstream, logger)
	service, err := proxy.NewService(proxy.ServiceOptions{
		Store:       cache.NewStore(),
		Fetcher:     fetcher,
		Logger:      logger,
		TTL:         cfg.CacheTTL(),
		Timeout:     cfg.UpstreamTimeout(),
		MaxBodySize: cfg.Upstream.MaxBodySize,
	})
	if err != nil {
		fmt.Fprintf(stdErr, "初始化代理服务失败: %v\n", err)
		return 1
	}
	handler := proxy.NewHandler(service, logger, cfg.Upstream.ResourcePath)

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["resource"] = cfg.Upstream.ResourcePath
	fields["upstream"] = cfg.Upstream.URL
	fields["cache_ttl"] = cfg.CacheTTL().String()
	fields["tracing"] = cfg.Global.TraceEndpoint != ""
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(ctx, cfg, handler, service, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
// 未指定时仅在当前目录存在 config.toml 时加载它，否则使用内置默认值。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 CORSPROXY_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("CORSPROXY_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func startHTTPServer(ctx context.Context, cfg *config.Config, handler server.ProxyHandler, reporter routes.StatusReporter, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:       logger,
		Proxy:        handler,
		ResourcePath: cfg.Upstream.ResourcePath,
		ListenPort:   port,
	})
	if err != nil {
		return err
	}
	routes.RegisterStatusRoutes(app, cfg.Upstream.ResourcePath, reporter)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.WithError(err).WithField("action", "shutdown").Warn("Fiber 服务关闭失败")
		}
	}()

	logger.WithFields(logrus.Fields{
		"action":   "listen",
		"port":     port,
		"resource": cfg.Upstream.ResourcePath,
	}).Info("Fiber 服务启动")

	err = app.Listen(fmt.Sprintf(":%d", port), fiber.ListenConfig{DisableStartupMessage: true})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.WithField("action", "shutdown").Info("Fiber 服务已停止")
	return nil
}
