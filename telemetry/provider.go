package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// TracerProvider owns the process-wide OpenTelemetry SDK TracerProvider,
// the way paulwilltell-OFFGRIDFLOW's internal/observability/tracer.go
// owns one. aiproxy has no collector to ship spans to, so it runs the
// SDK with an always-on sampler and no exporter attached: every span
// Tracer.Start* opens is actually recorded and ended through the SDK
// rather than silently discarded by the otel no-op default, which is
// what happens if nothing ever calls otel.SetTracerProvider.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
}

// NewTracerProvider builds a TracerProvider and registers it as the
// process-wide default, so every telemetry.NewTracer created afterward
// (including ones built before a caller has a handle to the returned
// *TracerProvider) picks it up via otel.Tracer(...).
func NewTracerProvider() *TracerProvider {
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)
	return &TracerProvider{provider: provider}
}

// Shutdown flushes any in-flight spans and releases SDK resources.
// Safe to call on a nil receiver.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp == nil || tp.provider == nil {
		return nil
	}
	return tp.provider.Shutdown(ctx)
}
