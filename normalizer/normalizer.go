// Package normalizer implements the pure input-cleansing functions
// spec §4.2 requires: NormalizeChat and NormalizeEmbed. Text cleansing
// (NFC normalization in particular) is grounded on the original Rust
// core's use of the unicode-normalization crate's .nfc() iterator;
// golang.org/x/text/unicode/norm is the direct ecosystem equivalent.
package normalizer

import (
	"math"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/howard-nolan/ai-proxy/model"
)

const (
	defaultTemperature     = 1.0
	defaultTopP            = 1.0
	maxOutputTokensCap     = 100_000
	temperatureMin         = 0.0
	temperatureMax         = 2.0
	topPMin                = 0.0
	topPMax                = 1.0
	temperatureDecimals    = 3
	topPDecimals           = 4
)

// CleanText applies the text cleansing pipeline shared by every message
// content and every embedding input: strip a leading BOM, normalize to
// Unicode NFC, turn CRLF into LF, then trim outer whitespace.
func CleanText(s string) string {
	s = strings.TrimPrefix(s, string(rune(0xFEFF)))
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimSpace(s)
}

func clampRound(v, min, max float64, decimals int) float64 {
	if v < min {
		v = min
	}
	if v > max {
		v = max
	}
	factor := math.Pow(10, float64(decimals))
	return math.Round(v*factor) / factor
}

// NormalizeChat returns a cleaned copy of req: message text is NFC/CRLF
// normalized, temperature and top_p are clamped and rounded (defaulted
// if absent), stop_sequences are sorted/deduplicated (becoming absent if
// empty after cleaning), and max_output_tokens is capped.
func NormalizeChat(req model.ChatRequest) model.ChatRequest {
	out := req

	out.Messages = make([]model.ChatMessage, len(req.Messages))
	for i, m := range req.Messages {
		out.Messages[i] = model.ChatMessage{Role: m.Role, Content: CleanText(m.Content)}
	}

	temp := defaultTemperature
	if req.Temperature != nil {
		temp = *req.Temperature
	}
	temp = clampRound(temp, temperatureMin, temperatureMax, temperatureDecimals)
	out.Temperature = &temp

	topP := defaultTopP
	if req.TopP != nil {
		topP = *req.TopP
	}
	topP = clampRound(topP, topPMin, topPMax, topPDecimals)
	out.TopP = &topP

	if len(req.StopSequences) > 0 {
		seen := make(map[string]struct{}, len(req.StopSequences))
		cleaned := make([]string, 0, len(req.StopSequences))
		for _, s := range req.StopSequences {
			c := CleanText(s)
			if c == "" {
				continue
			}
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			cleaned = append(cleaned, c)
		}
		sort.Strings(cleaned)
		if len(cleaned) == 0 {
			out.StopSequences = nil
		} else {
			out.StopSequences = cleaned
		}
	} else {
		out.StopSequences = nil
	}

	if req.MaxOutputTokens != nil {
		capped := *req.MaxOutputTokens
		if capped > maxOutputTokensCap {
			capped = maxOutputTokensCap
		}
		out.MaxOutputTokens = &capped
	}

	return out
}

// NormalizeEmbed cleans every input string, drops empties, and removes
// duplicates while preserving first-occurrence order.
func NormalizeEmbed(req model.EmbedRequest) model.EmbedRequest {
	out := req

	seen := make(map[string]struct{}, len(req.Inputs))
	cleaned := make([]string, 0, len(req.Inputs))
	for _, in := range req.Inputs {
		c := CleanText(in)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		cleaned = append(cleaned, c)
	}
	out.Inputs = cleaned
	return out
}
