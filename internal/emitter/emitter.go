// Package emitter 实现定时日志发射器。
// 发射器在进程启动时注册到 cron 调度器，按固定间隔发射一条随机级别的记录，
// 单次发射失败只记录诊断日志，不影响后续调度。
package emitter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/oriys/logdemo/internal/domain"
	"github.com/oriys/logdemo/internal/logsink"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// DefaultInterval 是默认的发射间隔
const DefaultInterval = 5 * time.Second

// ErrAlreadyStarted 表示发射器已经启动
var ErrAlreadyStarted = errors.New("emitter already started")

// Config 定时发射器配置
type Config struct {
	// Interval 发射间隔，cron 的固定间隔调度精度为秒，最小 1s
	Interval time.Duration
	// Service 记录中的 service 字段
	Service string
}

// Option 用于注入发射器依赖
type Option func(*Emitter)

// WithRand 指定随机数源。传入固定种子的生成器可以得到确定的级别和指标序列。
func WithRand(r *rand.Rand) Option {
	return func(e *Emitter) {
		e.rnd = r
	}
}

// WithClock 指定记录时间戳的时钟
func WithClock(now func() time.Time) Option {
	return func(e *Emitter) {
		e.now = now
	}
}

// WithTracer 为每次发射创建一个 Span，记录会携带该 Span 的 trace_id
func WithTracer(t trace.Tracer) Option {
	return func(e *Emitter) {
		e.tracer = t
	}
}

// Emitter 定时发射器
type Emitter struct {
	cfg    Config
	sink   logsink.Sink
	logger *logrus.Logger
	cron   *cron.Cron
	now    func() time.Time
	tracer trace.Tracer

	mu      sync.Mutex // 保护 rnd 和 started
	rnd     *rand.Rand
	started bool
}

// New 创建定时发射器，创建后需要调用 Start 才会开始调度。
//
// 参数：
//   - cfg: 发射器配置，Interval 为 0 时使用 DefaultInterval，Service 为空时使用 domain.ServiceName
//   - sink: 记录输出端，不能为 nil
//   - logger: 进程诊断日志，为 nil 时使用 logrus 标准 Logger
//   - opts: 可选依赖，如 WithRand、WithClock、WithTracer
//
// 返回值：
//   - *Emitter: 未启动的发射器
//   - error: Interval 小于 1s 或 sink 为 nil 时返回错误
//
// 使用示例：
//
//	em, err := emitter.New(emitter.Config{Interval: 5 * time.Second}, sink, logger)
//	if err != nil {
//	    return err
//	}
//	em.Start()
//	defer em.Stop(ctx)
func New(cfg Config, sink logsink.Sink, logger *logrus.Logger, opts ...Option) (*Emitter, error) {
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Interval < time.Second {
		return nil, fmt.Errorf("emitter interval must be at least 1s, got %s", cfg.Interval)
	}
	if cfg.Service == "" {
		cfg.Service = domain.ServiceName
	}
	if sink == nil {
		return nil, errors.New("emitter requires a sink")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	cl := cronLogger{logger: logger}
	e := &Emitter{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		now:    time.Now,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rnd == nil {
		e.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if e.tracer == nil {
		e.tracer = noop.NewTracerProvider().Tracer("")
	}
	return e, nil
}

// Start 注册定时任务并启动调度器，只能调用一次
func (e *Emitter) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return ErrAlreadyStarted
	}
	e.started = true

	e.cron.Schedule(cron.Every(e.cfg.Interval), e)
	e.cron.Start()

	e.logger.WithFields(logrus.Fields{
		"interval": e.cfg.Interval.String(),
		"service":  e.cfg.Service,
	}).Debug("Periodic emitter started")
	return nil
}

// Stop 停止调度器并等待正在执行的发射结束，ctx 到期时提前返回
func (e *Emitter) Stop(ctx context.Context) error {
	done := e.cron.Stop()
	select {
	case <-done.Done():
		e.logger.Debug("Periodic emitter stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run 实现 cron.Job，执行一次发射。失败只记录日志，调度继续。
func (e *Emitter) Run() {
	if err := e.Fire(context.Background()); err != nil {
		e.logger.WithError(err).Warn("Periodic emission failed")
	}
}

// Fire 发射一条定时记录：从 info/debug/warn 中均匀选取级别，metric 取 [0, 100) 内的随机值
func (e *Emitter) Fire(ctx context.Context) error {
	level, metric := e.draw()

	ctx, span := e.tracer.Start(ctx, "emitter.fire", trace.WithAttributes(
		attribute.String("log.level", level.String()),
		attribute.Float64("log.metric", metric),
	))
	defer span.End()

	rec := domain.NewPeriodicRecord(e.now(), level, metric, e.cfg.Service)
	if err := e.sink.Emit(ctx, rec); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to emit periodic record: %w", err)
	}
	return nil
}

func (e *Emitter) draw() (domain.Level, float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	level := domain.PeriodicLevels[e.rnd.IntN(len(domain.PeriodicLevels))]
	metric := e.rnd.Float64() * 100
	if metric >= 100 {
		metric = math.Nextafter(100, 0)
	}
	return level, metric
}

// cronLogger 将 cron 的内部日志转发到 logrus。
// cron 的 Info 日志（wake/run/schedule）非常频繁，降为 Debug 级别。
type cronLogger struct {
	logger *logrus.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(kvFields(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(kvFields(keysAndValues)).WithError(err).Error("cron: " + msg)
}

func kvFields(kv []interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields[key] = kv[i+1]
	}
	return fields
}
