// Package provider defines the adapter contract every LLM backend
// satisfies and implements the adapters themselves (OpenAI-compatible,
// Anthropic, OpenRouter, and a canned null provider).
//
// Every backend implements Provider. The rest of the module — the
// registry, the router — works only with this interface, so it never
// needs to know which provider is actually handling a request.
package provider

import (
	"context"

	"github.com/howard-nolan/ai-proxy/model"
	"github.com/howard-nolan/ai-proxy/stream"
)

// Capability names one thing a provider can do. Chat, ChatStream and
// Embed are the three this module calls today; Transcribe/Moderate/Rerank are carried
// over unused from the capability model's original closed enum so a
// caller can already type-safely ask "does this provider support X" as
// the capability set grows.
type Capability = model.Capability

const (
	CapabilityChat       = model.CapabilityChat
	CapabilityChatStream = model.CapabilityChatStream
	CapabilityEmbed      = model.CapabilityEmbed
	CapabilityTranscribe = model.CapabilityTranscribe
	CapabilityModerate   = model.CapabilityModerate
	CapabilityRerank     = model.CapabilityRerank
)

// Provider is the interface every LLM backend must satisfy. Go
// interfaces are implicit: any struct with these methods automatically
// implements Provider — no "implements" keyword needed.
type Provider interface {
	// Name returns the provider identifier, e.g. "openai" or "anthropic".
	// Used for telemetry labels and routing.
	Name() string

	// Capabilities lists what this provider can do. The router and
	// registry consult this before dispatching a request; calling an
	// unsupported operation (e.g. Embed on Anthropic) returns a
	// Validation error instead of reaching this list.
	Capabilities() []Capability

	// ChatCompletion sends a request and returns the complete response.
	ChatCompletion(ctx context.Context, req model.ChatRequest) (model.ChatResponse, error)

	// ChatCompletionStream sends a request and returns a channel that
	// delivers StreamEvents as they arrive from the upstream API. The
	// channel is closed after its one terminal event (Stop or Error); no
	// event follows the terminal one. A provider that doesn't implement
	// true streaming may satisfy this by degrading to ChatCompletion and
	// emitting its result as a single DeltaText followed by Stop.
	ChatCompletionStream(ctx context.Context, req model.ChatRequest) (<-chan stream.Event, error)

	// Embed sends an embedding request and returns the vectors. A
	// provider with no Embed capability returns a Validation error.
	Embed(ctx context.Context, req model.EmbedRequest) (model.EmbedResponse, error)
}

// HasCapability reports whether cap appears in caps.
func HasCapability(caps []Capability, cap Capability) bool {
	for _, c := range caps {
		if c == cap {
			return true
		}
	}
	return false
}

// turnIDFor derives the turn id every adapter stamps onto its response:
// the caller's request id when supplied, or the literal "turn" when not,
// matching the original CLI's default-identifier convention.
func turnIDFor(requestID string) string {
	if requestID != "" {
		return requestID
	}
	return "turn"
}

// degradeToChat runs chatFn and relays its single result as a DeltaText
// followed by the terminal Stop, wrapped as an Event channel. Used by
// adapters (and the null provider) that don't implement a true
// incremental stream. The DeltaText is omitted when the response text is
// empty. No event follows Stop.
func degradeToChat(ctx context.Context, chatFn func(context.Context) (model.ChatResponse, error)) (<-chan stream.Event, error) {
	resp, err := chatFn(ctx)
	if err != nil {
		return nil, err
	}
	ch := make(chan stream.Event, 2)
	if resp.Text != "" {
		ch <- stream.DeltaText(resp.Text)
	}
	ch <- stream.Stop{Reason: resp.StopReason}
	close(ch)
	return ch, nil
}
