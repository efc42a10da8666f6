// Package config handles loading ai-proxy configuration
// from a YAML file layered with environment overrides. Used only by the
// CLI smoke tool — library callers construct a model.Config directly.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/howard-nolan/ai-proxy/model"
)

// Load reads configuration from a YAML file, layers environment
// variable overrides on top, and returns a fully populated
// model.Config. Provider credentials themselves are not read here —
// routing.rules, routing.default, and http tuning live in the file;
// api_key_env just names which environment variable a provider's key
// comes from, resolved later by internal/registry.
func Load(path string) (*model.Config, error) {
	// Load .env file into the process environment (ignored if not present).
	_ = godotenv.Load()

	// Create a new koanf instance. The "." delimiter tells koanf how to
	// separate nested keys internally (e.g., "routing.default").
	k := koanf.New(".")

	// Load the YAML config file. file.Provider reads the file,
	// yaml.Parser() decodes the YAML format into koanf's internal map.
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}

	// Layer environment variables on top. Any env var starting with
	// "AIPROXY_" can override a config value. The callback transforms
	// the env var name into a koanf key path:
	//   AIPROXY_ROUTING_DEFAULT -> routing.default
	if err := k.Load(env.Provider("AIPROXY_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "AIPROXY_")),
			"_", ".",
		)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	// Unmarshal the loaded key-value pairs into our Config struct.
	var cfg model.Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
