// Package telemetry defines the canonical, provider-agnostic tracing
// payloads and the process-wide, write-once sink interface. Ported from
// the key names and event shapes in the original Rust telemetry module;
// the global-sink-with-test-capture pattern is also carried over, using
// a mutex-guarded write-once variable in place of OnceCell and a
// process-wide test-only flag in place of the thread-local capture gate.
package telemetry

import "sync"

// Span/log attribute keys. Keep these stable; changing them is a
// breaking change for any dashboard built against them.
const (
	KeyProvider          = "llm.provider"
	KeyModel             = "llm.model"
	KeyTurnID            = "turn.id"
	KeyRequestID         = "req.id"
	KeyProviderRequestID = "llm.req_id"
	KeyLatencyMs         = "latency.ms"
	KeyFinishReason      = "finish.reason"
	KeyTokensPrompt      = "tokens.prompt"
	KeyTokensCompletion  = "tokens.completion"
	KeyTokensTotal       = "tokens.total"
	KeyErrorKind         = "error.kind"
	KeyErrorMessage      = "error.message"
)

// ProviderTrace is emitted once per HTTP call (success or failure) and
// once per SSE stream lifetime.
type ProviderTrace struct {
	TurnID            string
	Provider          string
	Model             string
	RequestID         string
	ProviderRequestID string
	LatencyMs         uint64
	TokensPrompt      *uint32
	TokensCompletion  *uint32
	TokensTotal       *uint32
	FinishReason      string
	ErrorKind         string
	ErrorMessage      string
}

// CompletionLog is a richer, optional event a sink may record once per
// completed chat turn; Sink requires RecordCompletion, so implementations
// that don't care about it embed NopSink to get a free no-op.
type CompletionLog struct {
	Provider          string
	Model             string
	RequestID         string
	TurnID            string
	ProviderRequestID string
	CreatedAtMs       uint64
	LatencyMs         uint64
	StopReason        string
	ErrorKind         string
	ErrorMessage      string
	Text              string
	TokensPrompt      *uint32
	TokensCompletion  *uint32
	TokensTotal       *uint32
	SpanName          string
	SpanID            string
	ParentSpanID      string
}

// Sink receives telemetry events. Implementations must be safe for
// concurrent use and must not panic; Record may be called from any
// goroutine, including on a hot path, so it should stay cheap.
type Sink interface {
	Record(trace ProviderTrace)
	RecordCompletion(log CompletionLog)
}

// NopSink embeds into a Sink implementation to get a free, no-op
// RecordCompletion — mirroring the Rust trait's defaulted method.
type NopSink struct{}

func (NopSink) RecordCompletion(CompletionLog) {}

var (
	mu          sync.Mutex
	globalSink  Sink
	testCapture bool
)

// SetSink installs the process-wide telemetry sink. It is write-once:
// subsequent calls are ignored and return false.
func SetSink(sink Sink) bool {
	mu.Lock()
	defer mu.Unlock()
	if globalSink != nil {
		return false
	}
	globalSink = sink
	return true
}

// Emit records a ProviderTrace if a sink is installed. Safe to call with
// no sink installed — the event is silently dropped, per spec §4.9.
func Emit(trace ProviderTrace) {
	mu.Lock()
	sink, capture := globalSink, testCapture
	mu.Unlock()
	if sink == nil {
		return
	}
	if capturingDisabled() && !capture {
		return
	}
	sink.Record(trace)
}

// EmitCompletion records a CompletionLog if a sink is installed.
func EmitCompletion(log CompletionLog) {
	mu.Lock()
	sink, capture := globalSink, testCapture
	mu.Unlock()
	if sink == nil {
		return
	}
	if capturingDisabled() && !capture {
		return
	}
	sink.RecordCompletion(log)
}

// testMode is flipped by SetTestCaptureEnabled; outside of tests it is
// always false, so capturingDisabled() is always false and emission is
// gated on sink presence alone.
var testMode bool

func capturingDisabled() bool { return testMode }

// SetTestCaptureEnabled gates emission behind an explicit opt-in for
// tests, mirroring the Rust crate's thread-local capture flag (collapsed
// here to a process-wide flag since Go test packages don't share a
// process with production code).
func SetTestCaptureEnabled(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	testMode = true
	testCapture = enabled
}

// resetForTest clears the installed sink and capture flag. Exported only
// to _test.go files in this package via a lowercase helper would not be
// visible to other packages' tests; other packages should construct a
// fresh in-memory Sink and call SetSink once per test binary instead.
func resetForTest() {
	mu.Lock()
	defer mu.Unlock()
	globalSink = nil
	testMode = false
	testCapture = false
}
