package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/howard-nolan/ai-proxy/model"
	"github.com/howard-nolan/ai-proxy/stream"
)

func TestPrintStreamPrintsDeltasThenStopReason(t *testing.T) {
	ch := make(chan stream.Event, 3)
	ch <- stream.DeltaText("Hel")
	ch <- stream.DeltaText("lo")
	reason := model.StopReasonStop
	ch <- stream.Stop{Reason: &reason}
	close(ch)

	var stdout, stderr bytes.Buffer
	err := printStream(&stdout, &stderr, ch)
	require.NoError(t, err)
	assert.Equal(t, "Hello\n", stdout.String())
	assert.Contains(t, stderr.String(), "[stop: stop]")
}

func TestPrintStreamPrintsFinalTextWhenNoDeltasSeen(t *testing.T) {
	ch := make(chan stream.Event, 1)
	ch <- stream.Final{Response: model.ChatResponse{Text: "canned"}}
	close(ch)

	var stdout, stderr bytes.Buffer
	err := printStream(&stdout, &stderr, ch)
	require.NoError(t, err)
	assert.Equal(t, "canned\n", stdout.String())
	assert.Empty(t, stderr.String())
}

func TestPrintStreamReturnsErrorOnErrorEvent(t *testing.T) {
	ch := make(chan stream.Event, 1)
	ch <- stream.Error{Err: errors.New("boom")}
	close(ch)

	var stdout, stderr bytes.Buffer
	err := printStream(&stdout, &stderr, ch)
	require.Error(t, err)
	assert.Contains(t, stderr.String(), "[error: boom]")
}

func TestLoadConfigDefaultsToNullWithoutCredentials(t *testing.T) {
	configPath = ""
	for _, k := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY"} {
		t.Setenv(k, "")
	}
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "null", cfg.Routing.Default)
}

func TestLoadConfigPrefersOpenAIWhenKeyPresent(t *testing.T) {
	configPath = ""
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Routing.Default)
}

func TestChatCommandRequiresModelAndMessage(t *testing.T) {
	cmd := newChatCmd()
	cmd.SetArgs([]string{})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	require.Error(t, err)
}
