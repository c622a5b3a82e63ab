package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"studybuddy-engine/internal/logger"
)

var tracer = otel.Tracer("studybuddy-engine/llm")

// LoggingProvider records every call as a log line and a trace span.
type LoggingProvider struct {
	inner Provider
	log   *logger.Logger
}

// WithLogging wraps a Provider so each Generate call is logged and traced.
func WithLogging(p Provider, log *logger.Logger) Provider {
	if log == nil {
		log = logger.Nop()
	}
	return &LoggingProvider{inner: p, log: log.With("component", "llm", "model", p.ModelID())}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	purpose := PurposeFrom(ctx)
	ctx, span := tracer.Start(ctx, "llm.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", l.inner.ModelID()),
		attribute.String("llm.purpose", purpose),
		attribute.Bool("llm.structured", req.Schema != nil),
	)

	start := time.Now()
	resp, err := l.inner.Generate(ctx, req)
	latency := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.log.Warn("llm call failed", "purpose", purpose, "latency_ms", latency.Milliseconds(), "error", err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("llm.input_tokens", resp.Usage.InputTokens),
		attribute.Int("llm.output_tokens", resp.Usage.OutputTokens),
	)
	l.log.Debug("llm call",
		"purpose", purpose,
		"latency_ms", latency.Milliseconds(),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)
	return resp, nil
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}
