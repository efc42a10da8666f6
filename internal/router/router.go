// Package router implements first-match-wins model-to-provider routing,
// the Go translation of the original core's RoutingResolver
// (aiproxy-core/src/router.rs).
package router

import (
	"regexp"

	"github.com/howard-nolan/ai-proxy/aiproxyerr"
	"github.com/howard-nolan/ai-proxy/internal/provider"
	"github.com/howard-nolan/ai-proxy/internal/registry"
	"github.com/howard-nolan/ai-proxy/model"
)

// compiledRule pairs a routing rule's precompiled regex with the
// provider name it routes to. Precompiling at construction time means a
// malformed pattern fails fast, not on the first matching request.
type compiledRule struct {
	pattern  *regexp.Regexp
	provider string
}

// Resolver picks a provider name for a given model string by testing
// rules in declaration order and falling back to a configured default.
type Resolver struct {
	defaultProvider string
	rules           []compiledRule
}

// New compiles cfg's rules. An invalid regex in any rule returns a
// Validation error immediately, before any request is routed.
func New(cfg model.RoutingConfig) (*Resolver, error) {
	r := &Resolver{defaultProvider: cfg.Default}
	for _, rule := range cfg.Rules {
		re, err := regexp.Compile(rule.Model)
		if err != nil {
			return nil, aiproxyerr.Validation("router: invalid routing regex %q for provider %q: %v", rule.Model, rule.Provider, err)
		}
		r.rules = append(r.rules, compiledRule{pattern: re, provider: rule.Provider})
	}
	return r, nil
}

// pickProviderName returns the first rule whose pattern matches
// modelName, or the configured default if none match.
func (r *Resolver) pickProviderName(modelName string) string {
	for _, rule := range r.rules {
		if rule.pattern.MatchString(modelName) {
			return rule.provider
		}
	}
	return r.defaultProvider
}

// SelectChat resolves modelName to a Provider advertising Chat.
func (r *Resolver) SelectChat(modelName string, reg *registry.ProviderRegistry) (provider.Provider, error) {
	name := r.pickProviderName(modelName)
	p, ok := reg.Chat(name)
	if !ok {
		return nil, aiproxyerr.Validation("router: provider %q not found or does not support chat", name)
	}
	return p, nil
}

// SelectChatStream resolves modelName to a Provider advertising
// ChatStream.
func (r *Resolver) SelectChatStream(modelName string, reg *registry.ProviderRegistry) (provider.Provider, error) {
	name := r.pickProviderName(modelName)
	p, ok := reg.ChatStream(name)
	if !ok {
		return nil, aiproxyerr.Validation("router: provider %q not found or does not support streaming chat", name)
	}
	return p, nil
}

// SelectEmbed resolves modelName to a Provider advertising Embed.
func (r *Resolver) SelectEmbed(modelName string, reg *registry.ProviderRegistry) (provider.Provider, error) {
	name := r.pickProviderName(modelName)
	p, ok := reg.Embed(name)
	if !ok {
		return nil, aiproxyerr.Validation("router: provider %q not found or does not support embeddings", name)
	}
	return p, nil
}
