// Package api 提供示例日志服务的 HTTP 处理程序。
// 每个路由都会以副作用的形式向 Sink 发射结构化日志记录，然后返回固定的 JSON 响应。
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/oriys/logdemo/internal/domain"
	"github.com/oriys/logdemo/internal/logsink"
	"github.com/oriys/logdemo/internal/telemetry"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Handler 是 HTTP 请求处理器。处理器之间不共享可变状态，可并发调用。
type Handler struct {
	sink   logsink.Sink
	logger *logrus.Logger // 进程诊断日志，不写入记录流
	now    func() time.Time
}

// NewHandler 创建一个新的 Handler
func NewHandler(sink logsink.Sink, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		sink:   sink,
		logger: logger,
		now:    time.Now,
	}
}

// Root 处理根路径请求。
// HTTP端点: GET /
//
// 除请求拦截器的记录外不发射任何记录。
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Hello World!"})
}

// SimulatedError 处理模拟错误请求。
// HTTP端点: GET /error
//
// 先发射一条 error 级别的记录（errorCode 为 ERR_SIMULATED），再返回 500。
// 这里的错误是模拟出来的，不是真实故障，不会向上传播。
func (h *Handler) SimulatedError(w http.ResponseWriter, r *http.Request) {
	h.emit(r, domain.NewSimulatedErrorRecord(h.now()))
	telemetry.AddSpanAttributes(r.Context(), attribute.String("log.error_code", domain.ErrorCodeSimulated))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Simulated error"})
}

// Warn 处理警告请求。
// HTTP端点: GET /warn
func (h *Handler) Warn(w http.ResponseWriter, r *http.Request) {
	h.emit(r, domain.NewWarningRecord(h.now()))
	writeJSON(w, http.StatusOK, map[string]string{"warning": "Check logs"})
}

// Health 处理健康检查请求。
// HTTP端点: GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// emit 发射记录，失败时只写诊断日志，请求照常完成。
// 请求处于追踪中时诊断日志带上 trace_id，便于定位丢失的记录。
func (h *Handler) emit(r *http.Request, rec *domain.Record) {
	if err := h.sink.Emit(r.Context(), rec); err != nil {
		fields := logrus.Fields{
			"kind": rec.Kind,
			"path": r.URL.Path,
		}
		if traceID := telemetry.TraceIDFromContext(r.Context()); traceID != "" {
			fields["trace_id"] = traceID
		}
		h.logger.WithError(err).WithFields(fields).Warn("Failed to emit log record")
	}
}

// writeJSON 将数据以JSON格式写入HTTP响应
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
