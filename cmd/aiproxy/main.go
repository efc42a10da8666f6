// Command aiproxy is a smoke-test CLI over the library's three
// operations: chat, chat-stream, and embed. It loads config from a YAML
// file (or builds a minimal one from env-var presence when none is
// given), then routes a single request through an aiproxy.Client and
// prints the result to stdout.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/howard-nolan/ai-proxy"
	"github.com/howard-nolan/ai-proxy/internal/config"
	"github.com/howard-nolan/ai-proxy/model"
	"github.com/howard-nolan/ai-proxy/stream"
	"github.com/howard-nolan/ai-proxy/telemetry"
)

var configPath string

func main() {
	tp := telemetry.NewTracerProvider()
	defer tp.Shutdown(context.Background())

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "aiproxy",
		Short: "ai-proxy CLI smoke tool",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults to routing to whichever provider has an API key set, else null)")
	root.AddCommand(newChatCmd(), newChatStreamCmd(), newEmbedCmd())
	return root
}

// loadConfig reads configPath if set; otherwise it builds a minimal
// config whose default route picks whichever provider has credentials
// present in the environment, falling back to the null provider.
func loadConfig() (model.Config, error) {
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return model.Config{}, err
		}
		return *cfg, nil
	}

	def := "null"
	switch {
	case os.Getenv("OPENAI_API_KEY") != "":
		def = "openai"
	case os.Getenv("ANTHROPIC_API_KEY") != "":
		def = "anthropic"
	case os.Getenv("OPENROUTER_API_KEY") != "":
		def = "openrouter"
	}
	return model.Config{Routing: model.RoutingConfig{Default: def}}, nil
}

func newChatCmd() *cobra.Command {
	var modelName, message string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Send a chat completion request",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := aiproxy.New(cfg)
			if err != nil {
				return err
			}

			resp, err := client.ChatCompletion(cmd.Context(), model.ChatRequest{
				Model:    modelName,
				Messages: []model.ChatMessage{{Role: model.RoleUser, Content: message}},
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", resp.Provider, resp.Text)
			return nil
		},
	}
	cmd.Flags().StringVar(&modelName, "model", "", "model identifier")
	cmd.Flags().StringVarP(&message, "message", "m", "", "message from the user")
	cmd.MarkFlagRequired("model")
	cmd.MarkFlagRequired("message")
	return cmd
}

func newChatStreamCmd() *cobra.Command {
	var modelName, message string
	cmd := &cobra.Command{
		Use:   "chat-stream",
		Short: "Stream a chat completion, printing deltas live",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := aiproxy.New(cfg)
			if err != nil {
				return err
			}

			ch, err := client.ChatCompletionStream(cmd.Context(), model.ChatRequest{
				Model:    modelName,
				Messages: []model.ChatMessage{{Role: model.RoleUser, Content: message}},
			})
			if err != nil {
				return err
			}
			return printStream(cmd.OutOrStdout(), cmd.ErrOrStderr(), ch)
		},
	}
	cmd.Flags().StringVar(&modelName, "model", "", "model identifier")
	cmd.Flags().StringVarP(&message, "message", "m", "", "message from the user")
	cmd.MarkFlagRequired("model")
	cmd.MarkFlagRequired("message")
	return cmd
}

func printStream(stdout, stderr io.Writer, ch <-chan stream.Event) error {
	var sawDelta bool
	for ev := range ch {
		switch e := ev.(type) {
		case stream.DeltaText:
			sawDelta = true
			fmt.Fprint(stdout, string(e))
		case stream.Usage:
			// nothing to print; the terminal ProviderTrace already logs it.
		case stream.Stop:
			if sawDelta {
				fmt.Fprintln(stdout)
			}
			reason := "none"
			if e.Reason != nil {
				reason = string(*e.Reason)
			}
			fmt.Fprintf(stderr, "[stop: %s]\n", reason)
		case stream.Final:
			if !sawDelta {
				fmt.Fprintln(stdout, e.Response.Text)
			}
		case stream.Error:
			fmt.Fprintf(stderr, "[error: %v]\n", e.Err)
			return e.Err
		}
	}
	return nil
}

func newEmbedCmd() *cobra.Command {
	var modelName, input string
	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Send an embedding request",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := aiproxy.New(cfg)
			if err != nil {
				return err
			}

			resp, err := client.Embed(cmd.Context(), model.EmbedRequest{
				Model:  modelName,
				Inputs: []string{input},
			})
			if err != nil {
				return err
			}
			for i, v := range resp.Vectors {
				fmt.Fprintf(cmd.OutOrStdout(), "%d -> dim=%d\n", i, len(v))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&modelName, "model", "", "model identifier")
	cmd.Flags().StringVarP(&input, "input", "i", "", "input text")
	cmd.MarkFlagRequired("model")
	cmd.MarkFlagRequired("input")
	return cmd
}
