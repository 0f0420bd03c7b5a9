// Package metrics 提供 Prometheus 指标采集与上报的统一封装。
// 指标只描述服务自身的运行状况（发射了多少记录、处理了多少请求），
// 不聚合记录中的 metric 字段。
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oriys/logdemo/internal/domain"
	"github.com/oriys/logdemo/internal/logsink"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 封装服务运行时指标集合。
//
// 指标分类:
//   - 记录指标: 按级别和种类统计发射的记录及失败次数
//   - HTTP 指标: 按路由模板统计请求数和耗时
type Metrics struct {
	// RecordsEmitted 成功发射的记录数
	// 标签: level, kind
	RecordsEmitted *prometheus.CounterVec

	// EmitFailures 发射失败次数
	// 标签: kind
	EmitFailures *prometheus.CounterVec

	// HTTPRequests HTTP 请求总数
	// 标签: method, route, status
	HTTPRequests *prometheus.CounterVec

	// HTTPDuration HTTP 请求耗时直方图（单位：毫秒）
	// 标签: route
	HTTPDuration *prometheus.HistogramVec

	// gatherer 与注册器对应，/metrics 从这里采集
	gatherer prometheus.Gatherer
}

// NewMetrics 创建一组指标并注册到 reg。
// namespace 作为所有指标名前缀；reg 为 nil 时注册到 prometheus.DefaultRegisterer。
// reg 同时实现 prometheus.Gatherer（如 *prometheus.Registry）时，Handler 从 reg 采集，
// 否则从 prometheus.DefaultGatherer 采集。
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	gatherer, ok := reg.(prometheus.Gatherer)
	if !ok {
		gatherer = prometheus.DefaultGatherer
	}

	return &Metrics{
		RecordsEmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_emitted_total",
				Help:      "Total number of structured log records emitted",
			},
			[]string{"level", "kind"},
		),
		EmitFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "emit_failures_total",
				Help:      "Total number of log records that could not be emitted",
			},
			[]string{"kind"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests handled",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_ms",
				Help:      "HTTP request duration in milliseconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
			},
			[]string{"route"},
		),
		gatherer: gatherer,
	}
}

// Handler 返回暴露本组指标的 HTTP 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RecordEmitted 记录一次发射结果
func (m *Metrics) RecordEmitted(rec *domain.Record, err error) {
	if m == nil || rec == nil {
		return
	}
	kind := string(rec.Kind)
	if kind == "" {
		kind = string(domain.KindUnknown)
	}
	if err != nil {
		m.EmitFailures.WithLabelValues(kind).Inc()
		return
	}
	m.RecordsEmitted.WithLabelValues(rec.Level.String(), kind).Inc()
}

// RecordHTTPRequest 记录一次 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(float64(duration.Microseconds()) / 1000)
}

// WrapSink 返回一个统计发射结果的 Sink。m 为 nil 时直接返回 next。
func (m *Metrics) WrapSink(next logsink.Sink) logsink.Sink {
	if m == nil {
		return next
	}
	return &countingSink{next: next, metrics: m}
}

type countingSink struct {
	next    logsink.Sink
	metrics *Metrics
}

func (s *countingSink) Emit(ctx context.Context, rec *domain.Record) error {
	err := s.next.Emit(ctx, rec)
	s.metrics.RecordEmitted(rec, err)
	return err
}

// HTTPMiddleware 返回统计请求数和耗时的中间件。
// 路由标签使用 chi 的路由模板，未匹配的路径统一记为 "unmatched"，避免标签基数失控。
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RecordHTTPRequest(r.Method, route, status, time.Since(start))
	})
}
