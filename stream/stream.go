// Package stream defines the canonical streaming event model every
// provider adapter's chat-stream path emits into, translated from the
// original core's StreamEvent enum (aiproxy-core/src/stream.rs). Go has
// no closed sum type, so the enum becomes an interface with a private
// marker method; callers type-switch on concrete variants.
package stream

import "github.com/howard-nolan/ai-proxy/model"

// Event is the closed set of events a chat stream can emit: DeltaText,
// Usage, Stop, Final, and Error. The unexported method keeps the set
// closed to this package.
type Event interface {
	isStreamEvent()
}

// DeltaText carries one incremental chunk of assistant text.
type DeltaText string

func (DeltaText) isStreamEvent() {}

// Usage reports token counts as they become known; either field may be
// nil if the upstream never reports it.
type Usage struct {
	Prompt     *uint32
	Completion *uint32
}

func (Usage) isStreamEvent() {}

// Stop reports the reason generation ended. Reason is nil when the
// upstream closed the connection without ever reporting one.
type Stop struct {
	Reason *model.StopReason
}

func (Stop) isStreamEvent() {}

// Final carries the fully assembled response, mirroring what a
// non-streaming call would have returned. It is a terminal event in its
// own right, mutually exclusive with Stop: a stream ends in exactly one
// of Stop, Final, or Error, never more than one.
type Final struct {
	Response model.ChatResponse
}

func (Final) isStreamEvent() {}

// Error reports a terminal failure. No further events follow one.
type Error struct {
	Err error
}

func (Error) isStreamEvent() {}

// IsTerminal reports whether ev ends the stream: Stop, Final, and Error
// are terminal; DeltaText and Usage are not.
func IsTerminal(ev Event) bool {
	switch ev.(type) {
	case Stop, Final, Error:
		return true
	default:
		return false
	}
}

// AsTextDelta returns the text and true if ev is a DeltaText event.
func AsTextDelta(ev Event) (string, bool) {
	d, ok := ev.(DeltaText)
	return string(d), ok
}
