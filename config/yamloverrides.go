package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// yamlOverrides is the optional, additive <home>/.hydramcp/config.yaml
// document. It exists for settings awkward to express as a single
// environment variable — per-model fallback chains and base-URL
// overrides for self-hosted/proxy deployments — without growing the
// .env format into something it was never meant to hold. Absence is
// not an error; every field here only ever adds to, never replaces,
// what Load already resolved from defaults/.env/environment.
type yamlOverrides struct {
	Fallbacks map[string][]string `yaml:"fallbacks"`
	BaseURLs  struct {
		OpenAI    string `yaml:"openai"`
		Anthropic string `yaml:"anthropic"`
		Gemini    string `yaml:"gemini"`
		Local     string `yaml:"local"`
	} `yaml:"base_urls"`
}

// applyYAMLOverrides merges <home>/.hydramcp/config.yaml into cfg, if
// present. Fallback entries from the file are added on top of (not
// replacing) any already set via HYDRAMCP_FALLBACKS; a base URL in
// the file only takes effect where the environment left one empty.
func applyYAMLOverrides(home string, cfg *Config) error {
	path := filepath.Join(home, ".hydramcp", "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var ov yamlOverrides
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if cfg.Fallbacks == nil {
		cfg.Fallbacks = map[string][]string{}
	}
	for model, alternatives := range ov.Fallbacks {
		if _, exists := cfg.Fallbacks[model]; !exists {
			cfg.Fallbacks[model] = alternatives
		}
	}

	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = ov.BaseURLs.OpenAI
	}
	if cfg.Anthropic.BaseURL == "" {
		cfg.Anthropic.BaseURL = ov.BaseURLs.Anthropic
	}
	if cfg.Gemini.BaseURL == "" {
		cfg.Gemini.BaseURL = ov.BaseURLs.Gemini
	}
	if cfg.LocalModel.BaseURL == "" {
		cfg.LocalModel.BaseURL = ov.BaseURLs.Local
	}
	return nil
}
