package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供资源路径/上游/缓存状态字段，供代理请求日志复用。
func RequestFields(resource, upstream, cacheStatus, requestID string) logrus.Fields {
	fields := logrus.Fields{
		"resource":     resource,
		"upstream":     upstream,
		"cache_status": cacheStatus,
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	return fields
}

// RefreshFields 描述一次回源刷新，leader 与 joiner 共用。
func RefreshFields(upstream string, leader bool) logrus.Fields {
	role := "joiner"
	if leader {
		role = "leader"
	}
	return logrus.Fields{
		"action":   "refresh",
		"upstream": upstream,
		"role":     role,
	}
}
