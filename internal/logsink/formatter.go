package logsink

import (
	"fmt"

	"github.com/oriys/logdemo/internal/domain"
	"github.com/sirupsen/logrus"
)

// recordKey 是 Entry.Data 中携带 *domain.Record 的键，格式化时不会输出
const recordKey = "_record"

// RecordFormatter 是一个 logrus 格式化器，按记录约定输出单行 JSON。
//
// 条目携带 *domain.Record 时直接使用记录的字段顺序；否则从条目的时间、
// 级别和消息构造一条记录。钩子写入 Entry.Data 的其他字段（如 trace_id）
// 追加在记录字段之后。
type RecordFormatter struct{}

// Format 实现 logrus.Formatter 接口。
func (f *RecordFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var rec *domain.Record
	extra := make(map[string]interface{}, len(entry.Data))
	for k, v := range entry.Data {
		if k == recordKey {
			rec, _ = v.(*domain.Record)
			continue
		}
		// error 类型默认会被编码为 {}，这里转成字符串
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		extra[k] = v
	}

	if rec == nil {
		rec = &domain.Record{
			Timestamp: entry.Time,
			Level:     LevelFromLogrus(entry.Level),
			Message:   entry.Message,
		}
	}

	buf := make([]byte, 0, 256)
	buf, err := rec.AppendJSON(buf, extra)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	return append(buf, '\n'), nil
}

// LevelFromLogrus 将 logrus 级别映射为记录级别。logrus 的 warning 输出为 warn。
func LevelFromLogrus(l logrus.Level) domain.Level {
	switch l {
	case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
		return domain.LevelError
	case logrus.WarnLevel:
		return domain.LevelWarn
	case logrus.InfoLevel:
		return domain.LevelInfo
	default:
		return domain.LevelDebug
	}
}

// LevelToLogrus 将记录级别映射为 logrus 级别。
func LevelToLogrus(l domain.Level) logrus.Level {
	switch l {
	case domain.LevelError:
		return logrus.ErrorLevel
	case domain.LevelWarn:
		return logrus.WarnLevel
	case domain.LevelDebug:
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}
