// Package registry builds the set of configured providers at startup
// and exposes name-based lookup by capability. Every registry always
// carries the null provider; real providers are added only when their
// env-sourced credentials are present and well-formed.
package registry

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/howard-nolan/ai-proxy/internal/provider"
	"github.com/howard-nolan/ai-proxy/internal/transport"
	"github.com/howard-nolan/ai-proxy/model"
)

const (
	defaultOpenAIBase     = "https://api.openai.com"
	defaultAnthropicBase  = "https://api.anthropic.com"
	defaultOpenRouterBase = "https://openrouter.ai/api"
)

// ProviderRegistry holds every constructed provider, indexed by name.
type ProviderRegistry struct {
	providers map[string]provider.Provider
	logger    *zap.Logger
}

// New builds a ProviderRegistry from environment variables and cfg.
// Providers whose required API key env var is unset are silently
// skipped; a present key that fails shape validation returns an error,
// since that is a caller-fixable configuration mistake worth surfacing.
//
// The three vendor registrations run concurrently under an errgroup:
// each only reads env vars and validates a key shape, so there's no
// shared work to order, and a malformed key in one provider shouldn't
// wait on another's lookup.
func New(cfg model.ProvidersConfig, httpClient *transport.Client, logger *zap.Logger) (*ProviderRegistry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &ProviderRegistry{
		providers: make(map[string]provider.Provider),
		logger:    logger,
	}
	r.providers["null"] = provider.NewNullProvider()

	var mu sync.Mutex
	g, _ := errgroup.WithContext(context.Background())
	g.Go(func() error { return r.registerOpenAI(cfg.OpenAI, httpClient, &mu) })
	g.Go(func() error { return r.registerAnthropic(cfg.Anthropic, httpClient, &mu) })
	g.Go(func() error { return r.registerOpenRouter(cfg.OpenRouter, httpClient, &mu) })

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return r, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func apiKeyEnv(secret *model.ProviderSecret, fallbackEnv string) string {
	if secret != nil && secret.APIKeyEnv != "" {
		return secret.APIKeyEnv
	}
	return fallbackEnv
}

func (r *ProviderRegistry) registerOpenAI(secret *model.ProviderSecret, httpClient *transport.Client, mu *sync.Mutex) error {
	key := os.Getenv(apiKeyEnv(secret, "OPENAI_API_KEY"))
	if key == "" {
		return nil
	}
	p, err := provider.NewOpenAIProvider(
		key,
		envOrDefault("OPENAI_BASE", defaultOpenAIBase),
		os.Getenv("OPENAI_ORG"),
		os.Getenv("OPENAI_PROJECT"),
		httpClient,
	)
	if err != nil {
		return err
	}
	r.put(mu, p)
	return nil
}

func (r *ProviderRegistry) registerAnthropic(secret *model.ProviderSecret, httpClient *transport.Client, mu *sync.Mutex) error {
	key := os.Getenv(apiKeyEnv(secret, "ANTHROPIC_API_KEY"))
	if key == "" {
		return nil
	}
	p := provider.NewAnthropicProvider(key, envOrDefault("ANTHROPIC_BASE", defaultAnthropicBase), httpClient)
	r.put(mu, p)
	return nil
}

func (r *ProviderRegistry) registerOpenRouter(secret *model.ProviderSecret, httpClient *transport.Client, mu *sync.Mutex) error {
	key := os.Getenv(apiKeyEnv(secret, "OPENROUTER_API_KEY"))
	if key == "" {
		return nil
	}
	p, err := provider.NewOpenRouterProvider(key, envOrDefault("OPENROUTER_BASE", defaultOpenRouterBase), httpClient)
	if err != nil {
		return err
	}
	r.put(mu, p)
	return nil
}

func (r *ProviderRegistry) put(mu *sync.Mutex, p provider.Provider) {
	mu.Lock()
	defer mu.Unlock()
	r.providers[p.Name()] = p
	r.logger.Debug("registered provider", zap.String("provider", p.Name()))
}

// Chat looks up name's Provider and confirms it advertises Chat.
func (r *ProviderRegistry) Chat(name string) (provider.Provider, bool) {
	p, ok := r.providers[name]
	if !ok || !provider.HasCapability(p.Capabilities(), provider.CapabilityChat) {
		return nil, false
	}
	return p, true
}

// ChatStream looks up name's Provider and confirms it advertises
// ChatStream or Chat. A Chat-only provider (such as null) serves the
// stream by relaying a single ChatCompletion result.
func (r *ProviderRegistry) ChatStream(name string) (provider.Provider, bool) {
	p, ok := r.providers[name]
	if !ok {
		return nil, false
	}
	caps := p.Capabilities()
	if !provider.HasCapability(caps, provider.CapabilityChatStream) && !provider.HasCapability(caps, provider.CapabilityChat) {
		return nil, false
	}
	return p, true
}

// Embed looks up name's Provider and confirms it advertises Embed.
func (r *ProviderRegistry) Embed(name string) (provider.Provider, bool) {
	p, ok := r.providers[name]
	if !ok || !provider.HasCapability(p.Capabilities(), provider.CapabilityEmbed) {
		return nil, false
	}
	return p, true
}

// Names returns every registered provider name, for diagnostics.
func (r *ProviderRegistry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
