package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/howard-nolan/ai-proxy/model"
	"github.com/howard-nolan/ai-proxy/stream"
)

func TestNullProviderChatCompletionReturnsCannedText(t *testing.T) {
	p := NewNullProvider()
	resp, err := p.ChatCompletion(context.Background(), model.ChatRequest{
		Model:    "anything",
		Messages: []model.ChatMessage{{Role: model.RoleUser, Content: "hello"}},
	})
	require.NoError(t, err)
	require.Equal(t, nullResponseText, resp.Text)
	require.Equal(t, "null", resp.Provider)
	require.Equal(t, uint32(len("hello")), resp.UsagePrompt)
}

func TestNullProviderEmbedReturnsZeroVectorsSizedToInput(t *testing.T) {
	p := NewNullProvider()
	resp, err := p.Embed(context.Background(), model.EmbedRequest{Inputs: []string{"a", "b", "c"}})
	require.NoError(t, err)
	require.Len(t, resp.Vectors, 3)
	for _, v := range resp.Vectors {
		require.Equal(t, []float32{0, 0, 0}, v)
	}
}

func TestNullProviderChatCompletionStreamEndsWithStop(t *testing.T) {
	p := NewNullProvider()
	ch, err := p.ChatCompletionStream(context.Background(), model.ChatRequest{Model: "m"})
	require.NoError(t, err)

	var last stream.Event
	for ev := range ch {
		last = ev
	}
	_, ok := last.(stream.Stop)
	require.True(t, ok)
}

func TestNullProviderCapabilities(t *testing.T) {
	p := NewNullProvider()
	require.True(t, HasCapability(p.Capabilities(), CapabilityChat))
	require.True(t, HasCapability(p.Capabilities(), CapabilityEmbed))
}
