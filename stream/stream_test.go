package stream

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/howard-nolan/ai-proxy/model"
)

type fakeLineSource struct {
	lines []string
	pos   int
	err   error
}

func (f *fakeLineSource) Next(provider string) (string, error) {
	if f.pos >= len(f.lines) {
		if f.err != nil {
			return "", f.err
		}
		return "", io.EOF
	}
	line := f.lines[f.pos]
	f.pos++
	return line, nil
}

func (f *fakeLineSource) Close() error { return nil }

func collect(ch <-chan Event) []Event {
	var evs []Event
	for ev := range ch {
		evs = append(evs, ev)
	}
	return evs
}

func TestIsTerminal(t *testing.T) {
	require.False(t, IsTerminal(DeltaText("hi")))
	require.False(t, IsTerminal(Usage{}))
	require.True(t, IsTerminal(Stop{}))
	require.True(t, IsTerminal(Final{}))
	require.True(t, IsTerminal(Error{}))
}

func TestAsTextDelta(t *testing.T) {
	text, ok := AsTextDelta(DeltaText("hello"))
	require.True(t, ok)
	require.Equal(t, "hello", text)

	_, ok = AsTextDelta(Stop{})
	require.False(t, ok)
}

func TestBridgeOpenAIChatEmitsDeltasThenStop(t *testing.T) {
	src := &fakeLineSource{lines: []string{
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		`data: {"choices":[{"delta":{"content":"lo"}}]}`,
		`data: {"choices":[{"delta":{},"finish_reason":"stop"}]}`,
		`data: [DONE]`,
	}}

	ch := BridgeOpenAIChat(context.Background(), "openai", "gpt-4o", "turn-1", "req-1", src, "provreq-1", time.Now(), nil)
	events := collect(ch)

	require.Len(t, events, 3)

	text1, ok := AsTextDelta(events[0])
	require.True(t, ok)
	require.Equal(t, "Hel", text1)

	text2, ok := AsTextDelta(events[1])
	require.True(t, ok)
	require.Equal(t, "lo", text2)

	stop, ok := events[2].(Stop)
	require.True(t, ok)
	require.NotNil(t, stop.Reason)
	require.Equal(t, model.StopReasonStop, *stop.Reason)

	// No events after the terminal Stop.
	_, open := <-ch
	require.False(t, open)
}

func TestBridgeOpenAIChatSynthesizesStopWhenUpstreamClosesSilently(t *testing.T) {
	src := &fakeLineSource{lines: []string{
		`data: {"choices":[{"delta":{"content":"hi"}}]}`,
	}}

	ch := BridgeOpenAIChat(context.Background(), "openai", "gpt-4o", "turn-1", "req-1", src, "", time.Now(), nil)
	events := collect(ch)

	require.Len(t, events, 2)
	stop, ok := events[1].(Stop)
	require.True(t, ok)
	require.Nil(t, stop.Reason)
}

func TestBridgeOpenAIChatIgnoresMalformedLines(t *testing.T) {
	src := &fakeLineSource{lines: []string{
		`: comment line`,
		`data: not json`,
		`data: {"choices":[{"delta":{"content":"ok"}}]}`,
		`data: [DONE]`,
	}}

	ch := BridgeOpenAIChat(context.Background(), "openai", "gpt-4o", "turn-1", "req-1", src, "", time.Now(), nil)
	events := collect(ch)

	text, ok := AsTextDelta(events[0])
	require.True(t, ok)
	require.Equal(t, "ok", text)
}

func TestBridgeOpenAIChatCallsSpanFinishExactlyOnceAtTerminal(t *testing.T) {
	src := &fakeLineSource{lines: []string{
		`data: {"choices":[{"delta":{},"finish_reason":"stop"}]}`,
	}}

	var calls int
	var gotProviderRequestID, gotErrorKind string
	spanFinish := func(providerRequestID string, latencyMs uint64, errorKind string) {
		calls++
		gotProviderRequestID = providerRequestID
		gotErrorKind = errorKind
	}

	ch := BridgeOpenAIChat(context.Background(), "openai", "gpt-4o", "turn-1", "req-1", src, "provreq-9", time.Now(), spanFinish)
	collect(ch)

	require.Equal(t, 1, calls)
	require.Equal(t, "provreq-9", gotProviderRequestID)
	require.Equal(t, "", gotErrorKind)
}

func TestBridgeOpenAIChatEmitsErrorOnStreamFailure(t *testing.T) {
	src := &fakeLineSource{
		lines: []string{`data: {"choices":[{"delta":{"content":"hi"}}]}`},
		err:   io.ErrUnexpectedEOF,
	}

	ch := BridgeOpenAIChat(context.Background(), "openai", "gpt-4o", "turn-1", "req-1", src, "", time.Now(), nil)
	events := collect(ch)

	last := events[len(events)-1]
	errEv, ok := last.(Error)
	require.True(t, ok)
	require.Error(t, errEv.Err)
}
