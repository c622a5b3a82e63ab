package observability

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"studybuddy-engine/internal/config"
	"studybuddy-engine/internal/logger"
)

// Shutdown flushes and stops the tracer provider.
type Shutdown func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// InitTracing installs a global tracer provider per cfg. With tracing
// disabled the global no-op provider stays in place.
func InitTracing(ctx context.Context, cfg config.Tracing, log *logger.Logger) (Shutdown, error) {
	if !cfg.Enabled {
		return noopShutdown, nil
	}
	if log == nil {
		log = logger.Nop()
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "studybuddy-engine"
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		log.Warn("otel resource init failed (continuing)", "error", err)
	}

	exporter, err := buildExporter(ctx, cfg, nil)
	if err != nil {
		return noopShutdown, fmt.Errorf("trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clampRatio(cfg.SampleRatio)))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	log.Info("otel tracing initialized", "service", serviceName, "exporter", cfg.Exporter, "endpoint", cfg.Endpoint)
	return tp.Shutdown, nil
}

// buildExporter picks OTLP/HTTP when an endpoint is set and stdout otherwise.
// out overrides the stdout writer.
func buildExporter(ctx context.Context, cfg config.Tracing, out io.Writer) (sdktrace.SpanExporter, error) {
	if strings.EqualFold(cfg.Exporter, "otlp") || (cfg.Exporter == "" && cfg.Endpoint != "") {
		opts := []otlptracehttp.Option{otlptracehttp.WithInsecure()}
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
		}
		return otlptracehttp.New(ctx, opts...)
	}
	opts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
	if out != nil {
		opts = append(opts, stdouttrace.WithWriter(out))
	}
	return stdouttrace.New(opts...)
}

func clampRatio(r float64) float64 {
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}
