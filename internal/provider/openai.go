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

const (
	openAIMinKeyLen = 40
	openAIKeyPrefix = "sk-"
	openAIProjKeyPrefix = "sk-proj-"
)

// OpenAIProvider implements Provider against the OpenAI-compatible chat
// and embeddings endpoints. OpenRouterProvider reuses this same wire
// shape against a different base URL and auth source (see openrouter.go).
type OpenAIProvider struct {
	apiKey     string
	org        string
	project    string
	baseURL    string
	httpClient *transport.Client
}

// NewOpenAIProvider validates apiKey's shape and constructs an
// OpenAIProvider. A "sk-proj-" key with no project configured fails
// construction, since OpenAI rejects such calls at the wire level and
// the spec requires surfacing that earlier, as a Validation error.
func NewOpenAIProvider(apiKey, baseURL, org, project string, httpClient *transport.Client) (*OpenAIProvider, error) {
	if len(apiKey) < openAIMinKeyLen || !strings.HasPrefix(apiKey, openAIKeyPrefix) {
		return nil, aiproxyerr.Validation("openai: API key looks invalid: " + aiproxyerr.MaskSecret(apiKey, 4))
	}
	if strings.HasPrefix(apiKey, openAIProjKeyPrefix) && project == "" {
		return nil, aiproxyerr.Validation("openai: sk-proj- key requires OPENAI_PROJECT to be configured")
	}
	return &OpenAIProvider{
		apiKey:     apiKey,
		org:        org,
		project:    project,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Capabilities() []Capability {
	return []Capability{CapabilityChat, CapabilityChatStream, CapabilityEmbed}
}

func (p *OpenAIProvider) authHeaders() http.Header {
	h := make(http.Header)
	h.Set("Authorization", "Bearer "+p.apiKey)
	if p.org != "" {
		h.Set("OpenAI-Organization", p.org)
	}
	if p.project != "" {
		h.Set("OpenAI-Project", p.project)
	}
	return h
}

type openAIChatRequest struct {
	Model       string              `json:"model"`
	Messages    []openAIChatMessage `json:"messages"`
	Temperature *float64            `json:"temperature,omitempty"`
	TopP        *float64            `json:"top_p,omitempty"`
	MaxTokens   *uint32             `json:"max_tokens,omitempty"`
	Stop        []string            `json:"stop,omitempty"`
	Stream      bool                `json:"stream,omitempty"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      openAIChatMessage `json:"message"`
		FinishReason string            `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     uint32 `json:"prompt_tokens"`
		CompletionTokens uint32 `json:"completion_tokens"`
		TotalTokens      uint32 `json:"total_tokens"`
	} `json:"usage"`
}

func toOpenAIChatRequest(req model.ChatRequest, doStream bool) openAIChatRequest {
	out := openAIChatRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxOutputTokens,
		Stop:        req.StopSequences,
		Stream:      doStream,
	}
	out.Messages = make([]openAIChatMessage, len(req.Messages))
	for i, m := range req.Messages {
		out.Messages[i] = openAIChatMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}

func (p *OpenAIProvider) ChatCompletion(ctx context.Context, req model.ChatRequest) (model.ChatResponse, error) {
	body := toOpenAIChatRequest(req, false)
	rc := transport.RequestCtx{RequestID: req.RequestID, TurnID: turnIDFor(req.RequestID), IdempotencyKey: req.IdempotencyKey}

	decoded, providerRequestID, latencyMs, err := transport.PostJSON[openAIChatResponse](
		ctx, p.httpClient, p.Name(), p.baseURL+"/v1/chat/completions", body, p.authHeaders(), rc)
	if err != nil {
		return model.ChatResponse{}, err
	}

	var text string
	var stopReason *model.StopReason
	if len(decoded.Choices) > 0 {
		text = decoded.Choices[0].Message.Content
		stopReason = mapOpenAIFinish(decoded.Choices[0].FinishReason)
	}

	prID := providerRequestID
	if prID == "" {
		prID = decoded.ID
	}

	return model.ChatResponse{
		Model:             req.Model,
		Text:              text,
		UsagePrompt:       decoded.Usage.PromptTokens,
		UsageCompletion:   decoded.Usage.CompletionTokens,
		Provider:          p.Name(),
		TurnID:            turnIDFor(req.RequestID),
		StopReason:        stopReason,
		ProviderRequestID: nonEmptyPtr(prID),
		CreatedAtMs:       time.Now().UnixMilli(),
		LatencyMs:         uint32(latencyMs),
	}, nil
}

func mapOpenAIFinish(reason string) *model.StopReason {
	if reason == "" {
		return nil
	}
	table := map[string]model.StopReason{
		"stop":           model.StopReasonStop,
		"length":         model.StopReasonLength,
		"content_filter": model.StopReasonContentFilter,
		"tool_calls":     model.StopReasonToolUse,
	}
	if sr, ok := table[reason]; ok {
		return &sr
	}
	other := model.StopReasonOther
	return &other
}

func (p *OpenAIProvider) ChatCompletionStream(ctx context.Context, req model.ChatRequest) (<-chan stream.Event, error) {
	body := toOpenAIChatRequest(req, true)
	rc := transport.RequestCtx{RequestID: req.RequestID, TurnID: turnIDFor(req.RequestID), IdempotencyKey: req.IdempotencyKey}

	lineStream, providerRequestID, spanFinish, err := p.httpClient.PostSSE(ctx, p.Name(), p.baseURL+"/v1/chat/completions", body, p.authHeaders(), rc)
	if err != nil {
		return nil, err
	}

	return stream.BridgeOpenAIChat(ctx, p.Name(), req.Model, turnIDFor(req.RequestID), req.RequestID, lineStream, providerRequestID, time.Now(), spanFinish), nil
}

type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedResponse struct {
	Model string `json:"model"`
	Data  []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		PromptTokens uint32 `json:"prompt_tokens"`
		TotalTokens  uint32 `json:"total_tokens"`
	} `json:"usage"`
}

func (p *OpenAIProvider) Embed(ctx context.Context, req model.EmbedRequest) (model.EmbedResponse, error) {
	body := openAIEmbedRequest{Model: req.Model, Input: req.Inputs}
	rc := transport.RequestCtx{}

	decoded, _, _, err := transport.PostJSON[openAIEmbedResponse](
		ctx, p.httpClient, p.Name(), p.baseURL+"/v1/embeddings", body, p.authHeaders(), rc)
	if err != nil {
		return model.EmbedResponse{}, err
	}

	vectors := make([][]float32, len(decoded.Data))
	for _, d := range decoded.Data {
		if d.Index >= 0 && d.Index < len(vectors) {
			vectors[d.Index] = d.Embedding
		}
	}

	return model.EmbedResponse{
		Model:    req.Model,
		Vectors:  vectors,
		Usage:    decoded.Usage.TotalTokens,
		Provider: p.Name(),
	}, nil
}

func nonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
