package stream

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/howard-nolan/ai-proxy/aiproxyerr"
	"github.com/howard-nolan/ai-proxy/model"
	"github.com/howard-nolan/ai-proxy/telemetry"
)

// LineSource is the minimal contract Bridge needs from a transport line
// stream, kept narrow so this package doesn't import internal/transport.
type LineSource interface {
	Next(provider string) (string, error)
	Close() error
}

type openAIChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     uint32 `json:"prompt_tokens"`
		CompletionTokens uint32 `json:"completion_tokens"`
	} `json:"usage"`
}

var openAIFinishReasons = map[string]model.StopReason{
	"stop":           model.StopReasonStop,
	"length":         model.StopReasonLength,
	"content_filter": model.StopReasonContentFilter,
	"tool_calls":     model.StopReasonToolUse,
}

func mapFinish(reason string) *model.StopReason {
	if reason == "" {
		return nil
	}
	if sr, ok := openAIFinishReasons[reason]; ok {
		return &sr
	}
	other := model.StopReasonOther
	return &other
}

// BridgeOpenAIChat translates an OpenAI-compatible chat-completion SSE
// stream (also used by OpenRouter, since it mirrors the same wire shape)
// into the canonical Event sequence. The returned channel is unbuffered,
// closed exactly once the stream has emitted its one terminal event
// (Stop or Error); the channel never yields anything after that.
//
// ctx cancellation stops the bridge without emitting a terminal event.
//
// spanFinish, if non-nil, ends the "sse.stream" span that wraps this
// stream's whole lifetime (opened by transport.Client.PostSSE); it is
// called exactly once, alongside the terminal ProviderTrace.
func BridgeOpenAIChat(ctx context.Context, provider, requestModel, turnID, requestID string, src LineSource, providerRequestID string, start time.Time, spanFinish func(providerRequestID string, latencyMs uint64, errorKind string)) <-chan Event {
	out := make(chan Event)

	go func() {
		defer close(out)
		defer src.Close()

		var usagePrompt, usageCompletion *uint32
		var stopReason *model.StopReason
		terminalEmitted := false

		emitTerminalTrace := func(errKind, errMsg string) {
			if terminalEmitted {
				return
			}
			terminalEmitted = true
			latencyMs := uint64(time.Since(start).Milliseconds())
			telemetry.Emit(telemetry.ProviderTrace{
				TurnID:            turnID,
				Provider:          provider,
				Model:             requestModel,
				RequestID:         requestID,
				ProviderRequestID: providerRequestID,
				LatencyMs:         latencyMs,
				TokensPrompt:      usagePrompt,
				TokensCompletion:  usageCompletion,
				ErrorKind:         errKind,
				ErrorMessage:      errMsg,
			})
			if spanFinish != nil {
				spanFinish(providerRequestID, latencyMs, errKind)
			}
		}
		defer emitTerminalTrace("", "")

		emit := func(ev Event) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			if ctx.Err() != nil {
				emitTerminalTrace("", "")
				return
			}

			line, err := src.Next(provider)
			if err == io.EOF {
				break
			}
			if err != nil {
				apiErr, ok := err.(*aiproxyerr.Error)
				kind := "io"
				if ok {
					kind = string(apiErr.Kind)
				}
				emit(Error{Err: err})
				emitTerminalTrace(kind, err.Error())
				return
			}

			line = strings.TrimSpace(line)
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				break
			}

			var chunk openAIChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) == 0 {
				if chunk.Usage != nil {
					p, c := chunk.Usage.PromptTokens, chunk.Usage.CompletionTokens
					usagePrompt, usageCompletion = &p, &c
					if !emit(Usage{Prompt: usagePrompt, Completion: usageCompletion}) {
						return
					}
				}
				continue
			}

			choice := chunk.Choices[0]
			if choice.Delta.Content != "" {
				if !emit(DeltaText(choice.Delta.Content)) {
					return
				}
			}
			if chunk.Usage != nil {
				p, c := chunk.Usage.PromptTokens, chunk.Usage.CompletionTokens
				usagePrompt, usageCompletion = &p, &c
			}
			if choice.FinishReason != "" && stopReason == nil {
				stopReason = mapFinish(choice.FinishReason)
				emit(Stop{Reason: stopReason})
				emitTerminalTrace("", "")
				return
			}
		}

		// Upstream closed (EOF or [DONE]) without ever sending a
		// finish_reason: synthesize the terminal Stop ourselves so every
		// stream still ends in exactly one terminal event.
		emit(Stop{Reason: nil})
		emitTerminalTrace("", "")
	}()

	return out
}
