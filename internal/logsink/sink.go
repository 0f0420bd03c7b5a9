// Package logsink 提供日志记录的输出端。
//
// Sink 是记录发射的唯一出口：HTTP 处理器和定时发射器都只依赖这个接口，
// 生产环境使用基于 logrus 的 LogrusSink 写入 stdout/stderr，测试使用 Recorder 捕获记录。
package logsink

import (
	"context"
	"io"

	"github.com/oriys/logdemo/internal/domain"
	"github.com/sirupsen/logrus"
)

// Sink 接收结构化日志记录。实现必须可以被并发调用。
type Sink interface {
	// Emit 追加一条记录
	Emit(ctx context.Context, rec *domain.Record) error
}

// LogrusSink 通过两个 logrus Logger 输出记录：信息流和诊断流。
// logrus 在写出时持有 Logger 的互斥锁，每条记录一次 Write，行之间不会交错。
type LogrusSink struct {
	out *logrus.Logger
	err *logrus.Logger
}

// NewLogrusSink 创建写入 stdout/stderr 的 Sink。
// 两个 Logger 都使用 RecordFormatter 且级别为 Debug，定时发射器的 debug 记录不会被过滤。
//
// 参数：
//   - stdout: 信息流，接收请求、定时和启动记录
//   - stderr: 诊断流，接收 error 和 warn 记录
//   - hooks: 同时注册到两个 Logger 上的钩子（例如追踪上下文钩子），其字段追加在记录字段之后
//
// 返回值：
//   - *LogrusSink: 可并发调用的 Sink
//
// 使用示例：
//
//	sink := logsink.NewLogrusSink(os.Stdout, os.Stderr, telemetry.NewLogrusHook())
//	err := sink.Emit(ctx, domain.NewWarningRecord(time.Now()))
func NewLogrusSink(stdout, stderr io.Writer, hooks ...logrus.Hook) *LogrusSink {
	return &LogrusSink{
		out: newRecordLogger(stdout, hooks),
		err: newRecordLogger(stderr, hooks),
	}
}

func newRecordLogger(w io.Writer, hooks []logrus.Hook) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&RecordFormatter{})
	l.SetLevel(logrus.DebugLevel)
	for _, h := range hooks {
		l.AddHook(h)
	}
	return l
}

// Emit 实现 Sink 接口。
func (s *LogrusSink) Emit(ctx context.Context, rec *domain.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	logger := s.out
	if rec.Stream() == domain.StreamStderr {
		logger = s.err
	}

	logger.WithContext(ctx).
		WithTime(rec.Timestamp).
		WithField(recordKey, rec).
		Log(LevelToLogrus(rec.Level), rec.Message)
	return nil
}
