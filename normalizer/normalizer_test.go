package normalizer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/howard-nolan/ai-proxy/model"
)

func TestCleanTextNFCNormalizesCombiningCharacters(t *testing.T) {
	decomposed := "é" // e + combining acute accent
	require.Equal(t, "é", CleanText(decomposed))
}

func TestCleanTextStripsBOMAndCRLF(t *testing.T) {
	raw := string(rune(0xFEFF)) + "  hello\r\nworld  "
	require.Equal(t, "hello\nworld", CleanText(raw))
}

func TestNormalizeChatDefaultsTemperatureAndTopP(t *testing.T) {
	out := NormalizeChat(model.ChatRequest{Model: "gpt-4o"})
	require.NotNil(t, out.Temperature)
	require.Equal(t, 1.0, *out.Temperature)
	require.NotNil(t, out.TopP)
	require.Equal(t, 1.0, *out.TopP)
}

func TestNormalizeChatClampsOutOfRangeValues(t *testing.T) {
	hot := 5.0
	wide := 3.0
	out := NormalizeChat(model.ChatRequest{Model: "m", Temperature: &hot, TopP: &wide})
	require.Equal(t, 2.0, *out.Temperature)
	require.Equal(t, 1.0, *out.TopP)
}

func TestNormalizeChatStopSequencesSortDedupEmptyBecomesAbsent(t *testing.T) {
	out := NormalizeChat(model.ChatRequest{
		Model:         "m",
		StopSequences: []string{"b", "a", "b", "  "},
	})
	require.Equal(t, []string{"a", "b"}, out.StopSequences)

	out2 := NormalizeChat(model.ChatRequest{Model: "m", StopSequences: []string{"  ", ""}})
	require.Nil(t, out2.StopSequences)
}

func TestNormalizeChatCapsMaxOutputTokens(t *testing.T) {
	huge := uint32(1_000_000)
	out := NormalizeChat(model.ChatRequest{Model: "m", MaxOutputTokens: &huge})
	require.Equal(t, uint32(100_000), *out.MaxOutputTokens)
}

func TestNormalizeChatIsIdempotent(t *testing.T) {
	req := model.ChatRequest{
		Model:         "m",
		Messages:      []model.ChatMessage{{Role: model.RoleUser, Content: " Hi \r\n"}},
		StopSequences: []string{"z", "a", "a"},
	}
	once := NormalizeChat(req)
	twice := NormalizeChat(once)
	require.Equal(t, once, twice)
}

func TestNormalizeEmbedDedupsPreservingOrder(t *testing.T) {
	out := NormalizeEmbed(model.EmbedRequest{
		Model:  "text-embedding-3-small",
		Inputs: []string{"b", "a", "b", "", "c"},
	})
	require.Equal(t, []string{"b", "a", "c"}, out.Inputs)
}
