package provider

import (
	"context"

	"github.com/howard-nolan/ai-proxy/model"
	"github.com/howard-nolan/ai-proxy/stream"
)

// nullResponseText is what NullProvider always returns, matching the
// canned fixed-string response the original core's NullProvider used in
// its own test suite.
const nullResponseText = "[null provider response]"

// NullProvider is always registered, under the name "null", and never
// requires configuration or credentials. It exists for smoke-testing the
// rest of the pipeline (routing, normalization, telemetry) without
// making a real network call, and as the router's degraded fallback
// target when no real provider matches.
type NullProvider struct{}

// NewNullProvider builds a NullProvider. Takes no arguments; kept as a
// constructor for symmetry with the other adapters' New*Provider funcs.
func NewNullProvider() *NullProvider {
	return &NullProvider{}
}

func (n *NullProvider) Name() string { return "null" }

func (n *NullProvider) Capabilities() []Capability {
	return []Capability{CapabilityChat, CapabilityEmbed}
}

// ChatCompletion ignores the message content beyond summing its length
// into a usage count, and always returns the same canned text.
func (n *NullProvider) ChatCompletion(ctx context.Context, req model.ChatRequest) (model.ChatResponse, error) {
	var promptLen int
	for _, m := range req.Messages {
		promptLen += len(m.Content)
	}
	stopReason := model.StopReasonStop
	return model.ChatResponse{
		Model:           req.Model,
		Text:            nullResponseText,
		UsagePrompt:     uint32(promptLen),
		UsageCompletion: uint32(len(nullResponseText)),
		Provider:        n.Name(),
		TurnID:          turnIDFor(req.RequestID),
		StopReason:      &stopReason,
	}, nil
}

func (n *NullProvider) ChatCompletionStream(ctx context.Context, req model.ChatRequest) (<-chan stream.Event, error) {
	return degradeToChat(ctx, func(ctx context.Context) (model.ChatResponse, error) {
		return n.ChatCompletion(ctx, req)
	})
}

// Embed returns one 3-dimensional zero vector per input, matching the
// original core's canned embedding shape.
func (n *NullProvider) Embed(ctx context.Context, req model.EmbedRequest) (model.EmbedResponse, error) {
	vectors := make([][]float32, len(req.Inputs))
	for i := range vectors {
		vectors[i] = make([]float32, 3)
	}
	return model.EmbedResponse{
		Model:    req.Model,
		Vectors:  vectors,
		Provider: n.Name(),
	}, nil
}
