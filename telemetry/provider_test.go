package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

// TestTracerSpansReachSDKExporter exercises the real SDK TracerProvider
// path (rather than the otel no-op default) the way
// paulwilltell-OFFGRIDFLOW/internal/observability/observability_test.go
// verifies its own tracer wiring: spans opened through a Tracer must
// actually flow to a registered SpanProcessor/exporter.
func TestTracerSpansReachSDKExporter(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	tracer := &Tracer{tracer: provider.Tracer("test"), logger: zap.NewNop()}

	_, finish := tracer.StartHTTPRequest(context.Background(), "openai", "POST", "https://api.openai.test/v1/chat/completions", "turn-1", "req-1", "")
	finish(200, "provreq-1", 12, "", "")

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Equal(t, "http.request", spans[0].Name)
}

func TestNewTracerProviderRegistersGlobalSDKProvider(t *testing.T) {
	tp := NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	require.NotNil(t, tp.provider)
	require.Same(t, tp.provider, otel.GetTracerProvider())
}
