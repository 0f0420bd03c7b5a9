package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oriys/logdemo/internal/metrics"
	"github.com/oriys/logdemo/internal/telemetry"
)

// RouterConfig 路由器配置选项
type RouterConfig struct {
	// Handler API处理器
	Handler *Handler
	// Metrics 指标集合（可选）
	Metrics *metrics.Metrics
	// MountMetrics 为 true 时在主路由上暴露 /metrics（指标端口与服务端口相同时使用）
	MountMetrics bool
	// ServiceName 追踪 Span 的服务名
	ServiceName string
}

// NewRouter 创建并配置HTTP路由器。
//
// 中间件按添加顺序执行：追踪、RequestID、指标、请求日志拦截器、Recoverer。
// 拦截器位于 Recoverer 之前，处理器即使 panic 也已经留下了请求记录。
// 记录中的 ip 取连接对端地址，X-Forwarded-For 和 X-Real-IP 不参与。
//
// 路由结构：
//
//	/         - 返回 Hello World
//	/error    - 发射模拟错误记录，返回 500
//	/warn     - 发射警告记录
//	/health   - 健康检查
//	/metrics  - Prometheus指标端点（可选）
func NewRouter(cfg *RouterConfig) *chi.Mux {
	h := cfg.Handler
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "logdemo"
	}

	r := chi.NewRouter()

	r.Use(telemetry.HTTPMiddleware(serviceName))
	r.Use(middleware.RequestID)
	r.Use(cfg.Metrics.HTTPMiddleware)
	r.Use(h.LogRequests)
	r.Use(middleware.Recoverer)

	r.Get("/", h.Root)
	r.Get("/error", h.SimulatedError)
	r.Get("/warn", h.Warn)
	r.Get("/health", h.Health)

	if cfg.MountMetrics && cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	return r
}
