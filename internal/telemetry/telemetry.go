// Package telemetry 提供 OpenTelemetry 分布式追踪的封装。
// 追踪默认关闭；启用后请求处理链路会生成 Span，并且日志记录会附带 trace_id/span_id，
// 便于在日志收集管道中关联追踪数据。
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Config 定义遥测配置
type Config struct {
	// Enabled 为 false 时只返回空操作追踪器
	Enabled bool `yaml:"enabled"`
	// Endpoint OTLP 接收器的 gRPC 地址
	Endpoint string `yaml:"endpoint"` // e.g., tempo:4317
	// ServiceName 追踪数据的服务标识
	ServiceName string `yaml:"service_name"`
	// SampleRate 采样率，0.0 到 1.0，超出范围时截断；默认值由 config 包提供
	SampleRate float64 `yaml:"sample_rate"`
	// Environment 运行环境标识
	Environment string `yaml:"environment"`
}

// Telemetry 持有追踪提供者和追踪器。
type Telemetry struct {
	config         Config
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
}

// New 根据配置初始化 OpenTelemetry 追踪。
//
// 启用时会建立到 OTLP 接收器的 gRPC 连接（10 秒超时），
// 设置全局追踪提供者和 W3C TraceContext/Baggage 传播器。
func New(ctx context.Context, cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return &Telemetry{
			config: cfg,
			tracer: otel.Tracer(cfg.ServiceName),
		}, nil
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "logdemo"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(ctx, cfg.Endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to %s: %w", cfg.Endpoint, err)
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			attribute.String("environment", cfg.Environment),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(newSampler(cfg.SampleRate))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Telemetry{
		config:         cfg,
		tracerProvider: tp,
		tracer:         tp.Tracer(cfg.ServiceName),
	}, nil
}

// newSampler 按采样率选择采样器，rate 超出 [0, 1] 时截断
func newSampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Tracer 返回追踪器实例，未启用时为全局空操作追踪器
func (t *Telemetry) Tracer() trace.Tracer {
	return t.tracer
}

// Shutdown 刷新待发送的 Span 并释放资源。未启用时直接返回。
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.tracerProvider == nil {
		return nil
	}
	return t.tracerProvider.Shutdown(ctx)
}

// IsEnabled 返回遥测功能是否已启用
func (t *Telemetry) IsEnabled() bool {
	return t.config.Enabled
}

// TraceIDFromContext 从上下文中提取 Trace ID，无有效 Span 时返回空字符串
func TraceIDFromContext(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// AddSpanAttributes 向当前 Span 添加属性
func AddSpanAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}
