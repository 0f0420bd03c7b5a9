// Package app 负责组装并运行示例日志服务。
// 它把记录输出端、定时发射器、HTTP 路由、指标和追踪连接起来，
// 并处理监听、启动记录和优雅关闭。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/oriys/logdemo/internal/api"
	"github.com/oriys/logdemo/internal/config"
	"github.com/oriys/logdemo/internal/domain"
	"github.com/oriys/logdemo/internal/emitter"
	"github.com/oriys/logdemo/internal/logsink"
	"github.com/oriys/logdemo/internal/metrics"
	"github.com/oriys/logdemo/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Options 运行时依赖
type Options struct {
	// Stdout 信息流输出
	Stdout io.Writer
	// Stderr 诊断流输出
	Stderr io.Writer
	// Logger 进程诊断日志
	Logger *logrus.Logger
	// Registerer 指标注册器，nil 时使用 prometheus.DefaultRegisterer
	Registerer prometheus.Registerer
}

// App 是组装完成的服务
type App struct {
	cfg     *config.Config
	logger  *logrus.Logger
	tel     *telemetry.Telemetry
	sink    logsink.Sink
	emitter *emitter.Emitter
	router  http.Handler
	metrics *metrics.Metrics
	addr    chan net.Addr
}

// New 根据配置组装服务，不会开始监听。
//
// 组装顺序：遥测（启用时为记录 Logger 注册 trace 钩子）、记录输出端、指标包装、
// 定时发射器、HTTP 路由。遥测初始化失败时退化为不追踪，服务照常组装。
//
// 参数：
//   - ctx: 遥测初始化使用的上下文
//   - cfg: 已校验的服务配置
//   - opts: 输出流、诊断日志和指标注册器；Logger 为 nil 时新建一个写到 stderr 的 Logger
//
// 返回值：
//   - *App: 组装完成的服务，调用 Run 开始运行
//   - error: 发射器配置不合法时返回错误
//
// 使用示例：
//
//	a, err := app.New(ctx, cfg, app.Options{Stdout: os.Stdout, Stderr: os.Stderr})
//	if err != nil {
//	    return err
//	}
//	return a.Run(ctx)
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(os.Stderr)
		logger.SetFormatter(&logsink.RecordFormatter{})
	}

	var hooks []logrus.Hook
	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		// 遥测初始化失败不影响主服务运行
		logger.WithError(err).Warn("Failed to initialize telemetry, continuing without tracing")
		tel, _ = telemetry.New(ctx, telemetry.Config{ServiceName: cfg.Telemetry.ServiceName})
	} else if tel.IsEnabled() {
		hooks = append(hooks, telemetry.NewLogrusHook())
		logger.WithFields(logrus.Fields{
			"endpoint":    cfg.Telemetry.Endpoint,
			"sample_rate": cfg.Telemetry.SampleRate,
		}).Debug("Telemetry initialized")
	}

	var sink logsink.Sink = logsink.NewLogrusSink(opts.Stdout, opts.Stderr, hooks...)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics(cfg.Metrics.Namespace, opts.Registerer)
		sink = m.WrapSink(sink)
	}

	emitterOpts := []emitter.Option{}
	if cfg.Emitter.Seed != 0 {
		seed := cfg.Emitter.Seed
		emitterOpts = append(emitterOpts, emitter.WithRand(rand.New(rand.NewPCG(seed, seed))))
	}
	if tel.IsEnabled() {
		emitterOpts = append(emitterOpts, emitter.WithTracer(tel.Tracer()))
	}
	em, err := emitter.New(emitter.Config{
		Interval: cfg.Emitter.Interval,
		Service:  cfg.Emitter.Service,
	}, sink, logger, emitterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create emitter: %w", err)
	}

	router := api.NewRouter(&api.RouterConfig{
		Handler:      api.NewHandler(sink, logger),
		Metrics:      m,
		MountMetrics: m != nil && cfg.Server.MetricsPort == cfg.Server.HTTPPort,
		ServiceName:  cfg.Telemetry.ServiceName,
	})

	return &App{
		cfg:     cfg,
		logger:  logger,
		tel:     tel,
		sink:    sink,
		emitter: em,
		router:  router,
		metrics: m,
		addr:    make(chan net.Addr, 1),
	}, nil
}

// Addr 在服务开始监听后返回监听地址
func (a *App) Addr() <-chan net.Addr {
	return a.addr
}

// Run 启动定时发射器和 HTTP 服务，阻塞直到 ctx 取消后完成优雅关闭。
// 端口绑定失败时立即返回错误。
func (a *App) Run(ctx context.Context) error {
	if err := a.emitter.Start(); err != nil {
		return fmt.Errorf("failed to start emitter: %w", err)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Server.HTTPPort))
	if err != nil {
		a.stopEmitter()
		return fmt.Errorf("failed to listen on port %d: %w", a.cfg.Server.HTTPPort, err)
	}

	server := &http.Server{
		Handler:      a.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// 监听成功后才发射启动记录
	port := listenPort(ln.Addr(), a.cfg.Server.HTTPPort)
	if err := a.sink.Emit(ctx, domain.NewStartupRecord(time.Now(), port, a.cfg.Emitter.Service)); err != nil {
		a.logger.WithError(err).Warn("Failed to emit startup record")
	}
	// 启动记录写出后才公布地址，调用方看到地址时启动记录已经在流中
	a.addr <- ln.Addr()

	metricsServer := a.startMetricsServer()

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("http server failed: %w", err)
		}
	}

	a.logger.Debug("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("Server shutdown error")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.WithError(err).Error("Metrics server shutdown error")
		}
	}
	if err := a.emitter.Stop(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("Emitter stop error")
	}
	if err := a.tel.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("Telemetry shutdown error")
	}

	a.logger.Debug("Server stopped")
	return runErr
}

// startMetricsServer 指标端口与服务端口不同时单独启动指标服务器
func (a *App) startMetricsServer() *http.Server {
	if a.metrics == nil || a.cfg.Server.MetricsPort == a.cfg.Server.HTTPPort {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.MetricsPort),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		a.logger.WithField("port", a.cfg.Server.MetricsPort).Debug("Starting metrics server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("Metrics server failed")
		}
	}()
	return srv
}

func (a *App) stopEmitter() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	_ = a.emitter.Stop(ctx)
}

// listenPort 从监听地址取出实际端口（配置为 0 时由系统分配）
func listenPort(addr net.Addr, fallback int) int {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	_, p, err := net.SplitHostPort(addr.String())
	if err != nil {
		return fallback
	}
	if n, err := strconv.Atoi(p); err == nil {
		return n
	}
	return fallback
}
