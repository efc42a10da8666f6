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
	openRouterMinKeyLen = 20
	openRouterKeyPrefix = "sk-or-"
)

// OpenRouterProvider implements Provider against OpenRouter's API, which
// mirrors the OpenAI chat/embeddings wire shape behind a distinct base
// URL and bearer token. It advertises ChatStream: OpenRouter documents
// the same streaming contract OpenAI does, so there is no reason to
// withhold it the way the capability-limited NullProvider does.
type OpenRouterProvider struct {
	apiKey     string
	baseURL    string
	httpClient *transport.Client
}

// NewOpenRouterProvider validates apiKey's shape and constructs an
// OpenRouterProvider.
func NewOpenRouterProvider(apiKey, baseURL string, httpClient *transport.Client) (*OpenRouterProvider, error) {
	if len(apiKey) < openRouterMinKeyLen || !strings.HasPrefix(apiKey, openRouterKeyPrefix) {
		return nil, aiproxyerr.Validation("openrouter: API key looks invalid: " + aiproxyerr.MaskSecret(apiKey, 4))
	}
	return &OpenRouterProvider{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}, nil
}

func (p *OpenRouterProvider) Name() string { return "openrouter" }

func (p *OpenRouterProvider) Capabilities() []Capability {
	return []Capability{CapabilityChat, CapabilityChatStream, CapabilityEmbed}
}

func (p *OpenRouterProvider) authHeaders() http.Header {
	h := make(http.Header)
	h.Set("Authorization", "Bearer "+p.apiKey)
	return h
}

func (p *OpenRouterProvider) ChatCompletion(ctx context.Context, req model.ChatRequest) (model.ChatResponse, error) {
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

func (p *OpenRouterProvider) ChatCompletionStream(ctx context.Context, req model.ChatRequest) (<-chan stream.Event, error) {
	body := toOpenAIChatRequest(req, true)
	rc := transport.RequestCtx{RequestID: req.RequestID, TurnID: turnIDFor(req.RequestID), IdempotencyKey: req.IdempotencyKey}

	lineStream, providerRequestID, spanFinish, err := p.httpClient.PostSSE(ctx, p.Name(), p.baseURL+"/v1/chat/completions", body, p.authHeaders(), rc)
	if err != nil {
		return nil, err
	}

	return stream.BridgeOpenAIChat(ctx, p.Name(), req.Model, turnIDFor(req.RequestID), req.RequestID, lineStream, providerRequestID, time.Now(), spanFinish), nil
}

func (p *OpenRouterProvider) Embed(ctx context.Context, req model.EmbedRequest) (model.EmbedResponse, error) {
	body := openAIEmbedRequest{Model: req.Model, Input: req.Inputs}
	decoded, _, _, err := transport.PostJSON[openAIEmbedResponse](
		ctx, p.httpClient, p.Name(), p.baseURL+"/v1/embeddings", body, p.authHeaders(), transport.RequestCtx{})
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
