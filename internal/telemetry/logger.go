package telemetry

import (
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

// LogrusHook 在日志条目携带有效 Span 上下文时注入 trace_id 和 span_id。
//
// 使用示例：
//
//	sink := logsink.NewLogrusSink(os.Stdout, os.Stderr, telemetry.NewLogrusHook())
type LogrusHook struct{}

// NewLogrusHook 创建一个新的 LogrusHook
func NewLogrusHook() *LogrusHook {
	return &LogrusHook{}
}

// Levels 在所有级别触发
func (h *LogrusHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire 实现 logrus.Hook
func (h *LogrusHook) Fire(entry *logrus.Entry) error {
	if entry.Context == nil {
		return nil
	}

	sc := trace.SpanFromContext(entry.Context).SpanContext()
	if !sc.IsValid() {
		return nil
	}

	entry.Data["trace_id"] = sc.TraceID().String()
	entry.Data["span_id"] = sc.SpanID().String()
	return nil
}
