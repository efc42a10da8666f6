// Package aiproxy is the public entry point: construct a Client from a
// model.Config and call ChatCompletion, ChatCompletionStream, or Embed.
// Everything else in this module (routing, provider adapters, the HTTP
// transport, normalization, telemetry) is an implementation detail
// reached only through this facade.
package aiproxy

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/howard-nolan/ai-proxy/aiproxyerr"
	"github.com/howard-nolan/ai-proxy/internal/registry"
	"github.com/howard-nolan/ai-proxy/internal/router"
	"github.com/howard-nolan/ai-proxy/internal/transport"
	"github.com/howard-nolan/ai-proxy/model"
	"github.com/howard-nolan/ai-proxy/normalizer"
	"github.com/howard-nolan/ai-proxy/stream"
	"github.com/howard-nolan/ai-proxy/telemetry"
)

// Client is the library's entry point. Build one with New and reuse it
// across requests; it holds no per-request state.
type Client struct {
	registry *registry.ProviderRegistry
	router   *router.Resolver
	http     *transport.Client
	logger   *zap.Logger
}

// Option configures a Client at construction time.
type Option func(*clientOptions)

type clientOptions struct {
	logger *zap.Logger
}

// WithLogger attaches a structured logger used for both the transport
// layer and this package's own lifecycle logging.
func WithLogger(logger *zap.Logger) Option {
	return func(o *clientOptions) { o.logger = logger }
}

// New builds a Client from cfg: compiles the routing rules, constructs
// the shared HTTP transport, and registers every provider whose
// credentials are present in the environment.
func New(cfg model.Config, opts ...Option) (*Client, error) {
	o := &clientOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	httpClient := transport.New(cfg.HTTP, transport.WithLogger(o.logger))

	reg, err := registry.New(cfg.Providers, httpClient, o.logger)
	if err != nil {
		return nil, err
	}

	resolver, err := router.New(cfg.Routing)
	if err != nil {
		return nil, err
	}

	return &Client{
		registry: reg,
		router:   resolver,
		http:     httpClient,
		logger:   o.logger,
	}, nil
}

func ensureRequestID(req *model.ChatRequest) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
}

// ChatCompletion normalizes req, routes it to the configured provider
// for req.Model, and returns the complete response.
func (c *Client) ChatCompletion(ctx context.Context, req model.ChatRequest) (model.ChatResponse, error) {
	ensureRequestID(&req)
	req = normalizer.NormalizeChat(req)

	p, err := c.router.SelectChat(req.Model, c.registry)
	if err != nil {
		return model.ChatResponse{}, err
	}

	resp, err := p.ChatCompletion(ctx, req)
	c.logCompletion(req, resp, err)
	return resp, err
}

// ChatCompletionStream normalizes req, routes it to the configured
// provider for req.Model, and returns a channel of canonical
// stream.Events. The channel closes after its terminal event.
func (c *Client) ChatCompletionStream(ctx context.Context, req model.ChatRequest) (<-chan stream.Event, error) {
	ensureRequestID(&req)
	req = normalizer.NormalizeChat(req)

	p, err := c.router.SelectChatStream(req.Model, c.registry)
	if err != nil {
		return nil, err
	}

	return p.ChatCompletionStream(ctx, req)
}

// Embed normalizes req, routes it to the configured provider for
// req.Model, and returns the embedding vectors.
func (c *Client) Embed(ctx context.Context, req model.EmbedRequest) (model.EmbedResponse, error) {
	req = normalizer.NormalizeEmbed(req)

	p, err := c.router.SelectEmbed(req.Model, c.registry)
	if err != nil {
		return model.EmbedResponse{}, err
	}

	return p.Embed(ctx, req)
}

func (c *Client) logCompletion(req model.ChatRequest, resp model.ChatResponse, err error) {
	log := telemetry.CompletionLog{
		Provider:    resp.Provider,
		Model:       req.Model,
		RequestID:   req.RequestID,
		TurnID:      resp.TurnID,
		CreatedAtMs: uint64(resp.CreatedAtMs),
		LatencyMs:   uint64(resp.LatencyMs),
		Text:        resp.Text,
	}
	if resp.StopReason != nil {
		log.StopReason = string(*resp.StopReason)
	}
	if resp.ProviderRequestID != nil {
		log.ProviderRequestID = *resp.ProviderRequestID
	}
	if apiErr, ok := err.(*aiproxyerr.Error); ok {
		log.ErrorKind = string(apiErr.Kind)
		log.ErrorMessage = apiErr.Error()
	}
	telemetry.EmitCompletion(log)
}
