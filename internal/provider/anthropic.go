package provider

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/howard-nolan/ai-proxy/aiproxyerr"
	"github.com/howard-nolan/ai-proxy/internal/transport"
	"github.com/howard-nolan/ai-proxy/model"
	"github.com/howard-nolan/ai-proxy/stream"
)

// anthropicAPIVersion pins the Messages API behavior. Anthropic requires
// this header on every request; instead of versioning the URL path they
// use a date-based header, so older clients keep working unmodified.
const anthropicAPIVersion = "2023-06-01"

// anthropicDefaultMaxTokens is used when the caller doesn't specify
// max_output_tokens. Anthropic requires the field, so callers get this
// fallback rather than a Validation error.
const anthropicDefaultMaxTokens = 1024

const anthropicMinMaxTokens = 1

// AnthropicProvider implements Provider against Anthropic's Messages
// API. Chat-only: Anthropic has no embeddings endpoint, so Embed always
// returns a Validation error.
type AnthropicProvider struct {
	apiKey     string
	baseURL    string
	httpClient *transport.Client
}

// NewAnthropicProvider constructs an AnthropicProvider. apiKey is not
// shape-validated the way OpenAI's is — Anthropic issues keys in several
// formats and the spec names no required prefix for this provider.
func NewAnthropicProvider(apiKey, baseURL string, httpClient *transport.Client) *AnthropicProvider {
	return &AnthropicProvider{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (a *AnthropicProvider) Name() string { return "anthropic" }

func (a *AnthropicProvider) Capabilities() []Capability {
	return []Capability{CapabilityChat, CapabilityChatStream}
}

func (a *AnthropicProvider) authHeaders() http.Header {
	h := make(http.Header)
	h.Set("x-api-key", a.apiKey)
	h.Set("anthropic-version", anthropicAPIVersion)
	return h
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens uint32             `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Stream    bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Content    []anthropicContentBlock `json:"content"`
	Model      string                  `json:"model"`
	StopReason string                  `json:"stop_reason"`
	Usage      anthropicUsage          `json:"usage"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  uint32 `json:"input_tokens"`
	OutputTokens uint32 `json:"output_tokens"`
}

// toAnthropicRequest pulls system messages out into the top-level
// "system" string (Anthropic has no system role in the messages array),
// joining multiples with "\n", and applies the max_tokens floor/default.
func toAnthropicRequest(req model.ChatRequest, doStream bool) anthropicRequest {
	ar := anthropicRequest{Model: req.Model, Stream: doStream}

	var systemParts []string
	for _, msg := range req.Messages {
		if msg.Role == model.RoleSystem {
			systemParts = append(systemParts, msg.Content)
			continue
		}
		ar.Messages = append(ar.Messages, anthropicMessage{
			Role:    string(msg.Role),
			Content: []anthropicContentBlock{{Type: "text", Text: msg.Content}},
		})
	}
	if len(systemParts) > 0 {
		ar.System = strings.Join(systemParts, "\n")
	}

	switch {
	case req.MaxOutputTokens == nil:
		ar.MaxTokens = anthropicDefaultMaxTokens
	case *req.MaxOutputTokens < anthropicMinMaxTokens:
		ar.MaxTokens = anthropicMinMaxTokens
	default:
		ar.MaxTokens = *req.MaxOutputTokens
	}

	return ar
}

var anthropicStopReasons = map[string]model.StopReason{
	"end_turn":      model.StopReasonEndTurn,
	"max_tokens":    model.StopReasonLength,
	"tool_use":      model.StopReasonToolUse,
	"stop_sequence": model.StopReasonStop,
}

func mapAnthropicStop(reason string) *model.StopReason {
	if reason == "" {
		return nil
	}
	if sr, ok := anthropicStopReasons[reason]; ok {
		return &sr
	}
	other := model.StopReasonOther
	return &other
}

func (a *AnthropicProvider) ChatCompletion(ctx context.Context, req model.ChatRequest) (model.ChatResponse, error) {
	body := toAnthropicRequest(req, false)
	rc := transport.RequestCtx{RequestID: req.RequestID, TurnID: turnIDFor(req.RequestID), IdempotencyKey: req.IdempotencyKey}

	decoded, providerRequestID, latencyMs, err := transport.PostJSON[anthropicResponse](
		ctx, a.httpClient, a.Name(), a.baseURL+"/v1/messages", body, a.authHeaders(), rc)
	if err != nil {
		return model.ChatResponse{}, err
	}

	var text string
	for _, block := range decoded.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}

	prID := providerRequestID
	if prID == "" {
		prID = decoded.ID
	}

	return model.ChatResponse{
		Model:             req.Model,
		Text:              text,
		UsagePrompt:       decoded.Usage.InputTokens,
		UsageCompletion:   decoded.Usage.OutputTokens,
		Provider:          a.Name(),
		TurnID:            turnIDFor(req.RequestID),
		StopReason:        mapAnthropicStop(decoded.StopReason),
		ProviderRequestID: nonEmptyPtr(prID),
		CreatedAtMs:       time.Now().UnixMilli(),
		LatencyMs:         uint32(latencyMs),
	}, nil
}

func (a *AnthropicProvider) ChatCompletionStream(ctx context.Context, req model.ChatRequest) (<-chan stream.Event, error) {
	// Anthropic's stream uses named SSE events (message_start,
	// content_block_delta, message_delta, message_stop) rather than the
	// single-shape OpenAI chunk format stream.BridgeOpenAIChat expects,
	// so this degrades to one full ChatCompletion call relayed as a
	// single-chunk stream. A dedicated Anthropic event parser belongs
	// here once a caller needs true incremental Anthropic streaming.
	return degradeToChat(ctx, func(ctx context.Context) (model.ChatResponse, error) {
		return a.ChatCompletion(ctx, req)
	})
}

func (a *AnthropicProvider) Embed(ctx context.Context, req model.EmbedRequest) (model.EmbedResponse, error) {
	return model.EmbedResponse{}, aiproxyerr.Validation("anthropic: embeddings are not supported")
}
