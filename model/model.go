// Package model holds the canonical request/response/config value types
// shared by every other package in this module. Provider adapters
// translate to and from vendor dialects at the edges; everything in
// between (router, registry, transport, stream bridge) only ever sees
// these types.
package model

// Role identifies who authored a ChatMessage. It serializes lower-case,
// matching the wire dialect most providers already speak.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// StopReason is the closed set of reasons a chat completion stopped
// generating. It serializes snake_case.
type StopReason string

const (
	StopReasonStop          StopReason = "stop"
	StopReasonLength        StopReason = "length"
	StopReasonToolUse       StopReason = "tool_use"
	StopReasonEndTurn       StopReason = "end_turn"
	StopReasonContentFilter StopReason = "content_filter"
	StopReasonOther         StopReason = "other"
)

// Capability is a named verb a provider adapter supports.
type Capability string

const (
	CapabilityChat       Capability = "chat"
	CapabilityChatStream Capability = "chat_stream"
	CapabilityEmbed      Capability = "embed"
	CapabilityTranscribe Capability = "transcribe"
	CapabilityModerate   Capability = "moderate"
	CapabilityRerank     Capability = "rerank"
)

// ChatMessage is one turn in a conversation.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the canonical, provider-agnostic chat completion request.
// Optional fields are pointers so "absent" and "zero value" stay distinct —
// the normalizer (see package normalizer) is the only place that fills in
// defaults.
type ChatRequest struct {
	Model            string        `json:"model"`
	Messages         []ChatMessage `json:"messages"`
	Temperature      *float64      `json:"temperature,omitempty"`
	TopP             *float64      `json:"top_p,omitempty"`
	MaxOutputTokens  *uint32       `json:"max_output_tokens,omitempty"`
	StopSequences    []string      `json:"stop_sequences,omitempty"`
	Metadata         any           `json:"metadata,omitempty"`
	ClientKey        string        `json:"client_key,omitempty"`
	RequestID        string        `json:"request_id,omitempty"`
	TraceID          string        `json:"trace_id,omitempty"`
	IdempotencyKey   string        `json:"idempotency_key,omitempty"`
}

// ChatResponse is the canonical chat completion result, regardless of
// which provider produced it.
type ChatResponse struct {
	Model             string      `json:"model"`
	Text              string      `json:"text"`
	UsagePrompt       uint32      `json:"usage_prompt"`
	UsageCompletion   uint32      `json:"usage_completion"`
	Cached            bool        `json:"cached"`
	Provider          string      `json:"provider"`
	TranscriptID      *string     `json:"transcript_id,omitempty"`
	TurnID            string      `json:"turn_id"`
	StopReason        *StopReason `json:"stop_reason,omitempty"`
	ProviderRequestID *string     `json:"provider_request_id,omitempty"`
	CreatedAtMs       int64       `json:"created_at_ms"`
	LatencyMs         uint32      `json:"latency_ms"`
}

// EmbedRequest is the canonical embedding request.
type EmbedRequest struct {
	Model     string   `json:"model"`
	Inputs    []string `json:"inputs"`
	ClientKey string   `json:"client_key,omitempty"`
}

// EmbedResponse is the canonical embedding result; Vectors preserves a
// strict 1-to-1, order-preserving correspondence with the request Inputs.
type EmbedResponse struct {
	Model    string      `json:"model"`
	Vectors  [][]float32 `json:"vectors"`
	Usage    uint32      `json:"usage"`
	Cached   bool        `json:"cached"`
	Provider string      `json:"provider"`
}

// RequestContext is the short-lived correlation bundle threaded through
// every HTTP call a provider adapter makes.
type RequestContext struct {
	RequestID      string
	TurnID         string
	IdempotencyKey string
}

// ProviderSecret names the env var that carries one vendor's API key.
type ProviderSecret struct {
	APIKeyEnv string `koanf:"api_key_env"`
}

// ProvidersConfig holds the optional per-vendor secret sources.
type ProvidersConfig struct {
	OpenAI     *ProviderSecret `koanf:"openai"`
	Anthropic  *ProviderSecret `koanf:"anthropic"`
	OpenRouter *ProviderSecret `koanf:"openrouter"`
}

// RoutingRule maps a compiled-at-construction-time regex pattern over
// model identifiers to a provider name.
type RoutingRule struct {
	Model    string `koanf:"model"`
	Provider string `koanf:"provider"`
}

// RoutingConfig is the ordered rule list plus the fallback provider.
type RoutingConfig struct {
	Default string        `koanf:"default"`
	Rules   []RoutingRule `koanf:"rules"`
}

// HTTPConfig tunes the shared connection pool. Zero values are replaced
// with the defaults named in spec §6 by whoever constructs the transport
// (see internal/transport).
type HTTPConfig struct {
	ConnectTimeoutMs    uint64 `koanf:"connect_timeout_ms"`
	RequestTimeoutMs    uint64 `koanf:"request_timeout_ms"`
	PoolMaxIdlePerHost  *int   `koanf:"pool_max_idle_per_host"`
}

// Config is the pre-validated configuration value this library consumes.
// Loading it from disk/env is an external collaborator's job (see
// internal/config for the optional convenience loader used by the CLI);
// the core never reads a file itself.
type Config struct {
	Providers ProvidersConfig `koanf:"providers"`
	Routing   RoutingConfig   `koanf:"routing"`
	HTTP      HTTPConfig      `koanf:"http"`
}
