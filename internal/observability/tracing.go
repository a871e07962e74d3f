package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"

	"github.com/spec-kit/dispatch-service/internal/config"
)

// SetupTracing installs an OTLP trace exporter when an endpoint is configured
// and returns the provider shutdown func. Without an endpoint the global
// no-op provider stays in place.
func SetupTracing(ctx context.Context, serviceName, version string, cfg config.TelemetryConfig, logger *zap.Logger) func(context.Context) error {
	if cfg.OTLPEndpoint == "" {
		return func(context.Context) error { return nil }
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.OTLPInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		logger.Warn("otel exporter error", zap.Error(err))
		return func(context.Context) error { return nil }
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		logger.Warn("otel resource error", zap.Error(err))
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	logger.Info("tracing enabled", zap.String("endpoint", cfg.OTLPEndpoint))

	return provider.Shutdown
}
