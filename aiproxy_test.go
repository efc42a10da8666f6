package aiproxy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/howard-nolan/ai-proxy/aiproxyerr"
	"github.com/howard-nolan/ai-proxy/model"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY"} {
		t.Setenv(k, "")
	}
}

func TestChatCompletionRoutesToNullByDefault(t *testing.T) {
	clearProviderEnv(t)
	c, err := New(model.Config{Routing: model.RoutingConfig{Default: "null"}})
	require.NoError(t, err)

	resp, err := c.ChatCompletion(context.Background(), model.ChatRequest{
		Model:    "anything",
		Messages: []model.ChatMessage{{Role: model.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	require.Equal(t, "null", resp.Provider)
}

func TestChatCompletionUnroutableModelYieldsValidation(t *testing.T) {
	clearProviderEnv(t)
	c, err := New(model.Config{Routing: model.RoutingConfig{Default: "openai"}})
	require.NoError(t, err)

	_, err = c.ChatCompletion(context.Background(), model.ChatRequest{Model: "anything"})
	require.Error(t, err)
	var apiErr *aiproxyerr.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, aiproxyerr.KindValidation, apiErr.Kind)
}

func TestEmbedRoutesToNullByDefault(t *testing.T) {
	clearProviderEnv(t)
	c, err := New(model.Config{Routing: model.RoutingConfig{Default: "null"}})
	require.NoError(t, err)

	resp, err := c.Embed(context.Background(), model.EmbedRequest{Model: "m", Inputs: []string{"a", "b"}})
	require.NoError(t, err)
	require.Len(t, resp.Vectors, 2)
}

func TestChatCompletionStreamEmitsTerminalEvent(t *testing.T) {
	clearProviderEnv(t)
	c, err := New(model.Config{Routing: model.RoutingConfig{Default: "null"}})
	require.NoError(t, err)

	ch, err := c.ChatCompletionStream(context.Background(), model.ChatRequest{Model: "anything"})
	require.NoError(t, err)

	var count int
	for range ch {
		count++
	}
	require.Greater(t, count, 0)
}
