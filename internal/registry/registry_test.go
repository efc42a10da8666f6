package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/howard-nolan/ai-proxy/internal/provider"
	"github.com/howard-nolan/ai-proxy/internal/transport"
	"github.com/howard-nolan/ai-proxy/model"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OPENAI_API_KEY", "OPENAI_BASE", "OPENAI_ORG", "OPENAI_PROJECT", "ANTHROPIC_API_KEY", "ANTHROPIC_BASE", "OPENROUTER_API_KEY", "OPENROUTER_BASE"} {
		t.Setenv(k, "")
	}
}

func TestNewAlwaysRegistersNull(t *testing.T) {
	clearProviderEnv(t)
	reg, err := New(model.ProvidersConfig{}, nil, nil)
	require.NoError(t, err)
	p, ok := reg.Chat("null")
	require.True(t, ok)
	require.Equal(t, "null", p.Name())
}

func TestNewSkipsProviderWithoutAPIKey(t *testing.T) {
	clearProviderEnv(t)
	reg, err := New(model.ProvidersConfig{}, nil, nil)
	require.NoError(t, err)
	_, ok := reg.Chat("openai")
	require.False(t, ok)
}

func TestNewRegistersOpenAIWhenKeyPresent(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-"+stringsRepeatFortyA())
	reg, err := New(model.ProvidersConfig{}, transport.New(model.HTTPConfig{}), nil)
	require.NoError(t, err)
	p, ok := reg.Chat("openai")
	require.True(t, ok)
	require.Equal(t, "openai", p.Name())
}

func TestNewFailsOnMalformedOpenAIKey(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("OPENAI_API_KEY", "badkey")
	_, err := New(model.ProvidersConfig{}, transport.New(model.HTTPConfig{}), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "***dkey")
}

func TestEmbedLookupRejectsProviderWithoutCapability(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	reg, err := New(model.ProvidersConfig{}, transport.New(model.HTTPConfig{}), nil)
	require.NoError(t, err)
	_, ok := reg.Embed("anthropic")
	require.False(t, ok)
}

func stringsRepeatFortyA() string {
	b := make([]byte, 40)
	for i := range b {
		b[i] = 'a'
	}
	return string(b)
}

var _ provider.Provider = (*provider.NullProvider)(nil)
