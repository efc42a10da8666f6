package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Tracer wraps an OpenTelemetry tracer with a zap logger, the same pairing
// BaSui01-agentflow's llm/observability/tracing.go uses for per-call
// spans. Two span names are used across this module: "http.request" and
// "sse.stream", per spec §4.4.
type Tracer struct {
	tracer oteltrace.Tracer
	logger *zap.Logger
}

// NewTracer builds a Tracer. A nil logger falls back to zap's no-op
// logger so callers that don't care about structured logs don't have to
// construct one.
func NewTracer(logger *zap.Logger) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracer{
		tracer: otel.Tracer("github.com/howard-nolan/ai-proxy"),
		logger: logger,
	}
}

// StartHTTPRequest opens an "http.request" span and returns a finisher
// that sets the remaining fields (known only after the call completes)
// and ends the span.
func (t *Tracer) StartHTTPRequest(ctx context.Context, provider, method, url, turnID, requestID, idempotencyKey string) (context.Context, func(status int, providerRequestID string, latencyMs uint64, errorKind, errorMessage string)) {
	ctx, span := t.tracer.Start(ctx, "http.request", oteltrace.WithAttributes(
		attribute.String(KeyProvider, provider),
		attribute.String("http.method", method),
		attribute.String("http.url", url),
		attribute.String(KeyTurnID, turnID),
		attribute.String(KeyRequestID, requestID),
		attribute.String("idempotency.key", idempotencyKey),
	))
	return ctx, func(status int, providerRequestID string, latencyMs uint64, errorKind, errorMessage string) {
		span.SetAttributes(
			attribute.Int("http.status", status),
			attribute.String(KeyProviderRequestID, providerRequestID),
			attribute.Int64(KeyLatencyMs, int64(latencyMs)),
			attribute.String(KeyErrorKind, errorKind),
			attribute.String(KeyErrorMessage, errorMessage),
		)
		span.End()
		if errorKind != "" {
			t.logger.Warn("http request failed",
				zap.String("provider", provider),
				zap.String("error_kind", errorKind),
				zap.Uint64("latency_ms", latencyMs),
			)
		} else {
			t.logger.Debug("http request completed",
				zap.String("provider", provider),
				zap.Uint64("latency_ms", latencyMs),
			)
		}
	}
}

// StartSSEStream opens an "sse.stream" span covering one stream's whole
// lifetime; the finisher is expected to run exactly once, driven by the
// same drop-guard that emits the stream's terminal ProviderTrace.
func (t *Tracer) StartSSEStream(ctx context.Context, provider string) (context.Context, func(providerRequestID string, latencyMs uint64, errorKind string)) {
	ctx, span := t.tracer.Start(ctx, "sse.stream", oteltrace.WithAttributes(
		attribute.String(KeyProvider, provider),
	))
	return ctx, func(providerRequestID string, latencyMs uint64, errorKind string) {
		span.SetAttributes(
			attribute.String(KeyProviderRequestID, providerRequestID),
			attribute.Int64(KeyLatencyMs, int64(latencyMs)),
			attribute.String(KeyErrorKind, errorKind),
		)
		span.End()
		t.logger.Debug("sse stream closed",
			zap.String("provider", provider),
			zap.Uint64("latency_ms", latencyMs),
			zap.String("error_kind", errorKind),
		)
	}
}
