// Package config loads HydraMCP's configuration: defaults, then a
// plain key=value file at <home>/.hydramcp/.env, then process
// environment variables, in that order of increasing priority.
// Grounded on config/loader.go and config/defaults.go in the teacher
// repo; trimmed from its generic reflection-based struct-tag walker
// to direct field assignment, since HydraMCP's env surface (§6) is a
// small, fixed, enumerable set rather than the teacher's broad
// multi-service configuration tree.
package config

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// BackendConfig configures one native (non-subscription) backend
// instance: a base URL and API key pulled from the environment.
type BackendConfig struct {
	BaseURL string
	APIKey  string
}

// SubscriptionConfig configures one OAuth refresh-token backend.
type SubscriptionConfig struct {
	CredentialsDir string
	RefreshURL     string
	ClientID       string
	BaseURL        string
}

// LogConfig controls the ambient zap logger.
type LogConfig struct {
	Level string // debug, info, warn, error
}

// Config is HydraMCP's full runtime configuration.
type Config struct {
	OpenAI     BackendConfig
	Anthropic  BackendConfig
	Gemini     BackendConfig
	LocalModel BackendConfig

	AnthropicSubscription SubscriptionConfig
	OpenAISubscription    SubscriptionConfig
	GeminiSubscription    SubscriptionConfig

	MaxFailures      int
	CooldownMS       int64
	CacheTTLMS       int64
	CacheMaxEntries  int
	ModelListTTLMS   int64
	RequestTimeoutMS int64
	Fallbacks        map[string][]string

	Log LogConfig
}

// DefaultConfig returns HydraMCP's defaults, matching §4.4-§4.7's
// stated parameter defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxFailures:      3,
		CooldownMS:       60_000,
		CacheTTLMS:       900_000,
		CacheMaxEntries:  100,
		ModelListTTLMS:   30_000,
		RequestTimeoutMS: 120_000,
		Fallbacks:        map[string][]string{},
		Log:              LogConfig{Level: "info"},
	}
}

// Load builds a Config by layering: defaults, then
// <home>/.hydramcp/.env (if present), then environment variables.
func Load(home string) (*Config, error) {
	cfg := DefaultConfig()

	envFile := filepath.Join(home, ".hydramcp", ".env")
	fileVars, err := readEnvFile(envFile)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", envFile, err)
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVars[key]
		return v, ok
	}

	if v, ok := lookup("HYDRAMCP_OPENAI_BASE_URL"); ok {
		cfg.OpenAI.BaseURL = v
	}
	if v, ok := lookup("HYDRAMCP_OPENAI_API_KEY"); ok {
		cfg.OpenAI.APIKey = v
	}
	if v, ok := lookup("HYDRAMCP_ANTHROPIC_BASE_URL"); ok {
		cfg.Anthropic.BaseURL = v
	}
	if v, ok := lookup("HYDRAMCP_ANTHROPIC_API_KEY"); ok {
		cfg.Anthropic.APIKey = v
	}
	if v, ok := lookup("HYDRAMCP_GEMINI_BASE_URL"); ok {
		cfg.Gemini.BaseURL = v
	}
	if v, ok := lookup("HYDRAMCP_GEMINI_API_KEY"); ok {
		cfg.Gemini.APIKey = v
	}
	if v, ok := lookup("HYDRAMCP_LOCAL_BASE_URL"); ok {
		cfg.LocalModel.BaseURL = v
	}
	if v, ok := lookup("HYDRAMCP_LOCAL_API_KEY"); ok {
		cfg.LocalModel.APIKey = v
	}

	defaultCredDir := filepath.Join(home, ".hydramcp", "credentials")
	cfg.AnthropicSubscription.CredentialsDir = defaultCredDir
	cfg.OpenAISubscription.CredentialsDir = defaultCredDir
	cfg.GeminiSubscription.CredentialsDir = defaultCredDir

	loadSubscription(lookup, "ANTHROPIC_SUBSCRIPTION", &cfg.AnthropicSubscription)
	loadSubscription(lookup, "OPENAI_SUBSCRIPTION", &cfg.OpenAISubscription)
	loadSubscription(lookup, "GEMINI_SUBSCRIPTION", &cfg.GeminiSubscription)

	if v, ok := lookup("HYDRAMCP_MAX_FAILURES"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxFailures = n
		}
	}
	if v, ok := lookup("HYDRAMCP_COOLDOWN_MS"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.CooldownMS = n
		}
	}
	if v, ok := lookup("HYDRAMCP_CACHE_TTL_MS"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.CacheTTLMS = n
		}
	}
	if v, ok := lookup("HYDRAMCP_CACHE_MAX_ENTRIES"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CacheMaxEntries = n
		}
	}
	if v, ok := lookup("HYDRAMCP_MODEL_LIST_TTL_MS"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.ModelListTTLMS = n
		}
	}
	if v, ok := lookup("HYDRAMCP_REQUEST_TIMEOUT_MS"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.RequestTimeoutMS = n
		}
	}
	if v, ok := lookup("HYDRAMCP_FALLBACKS"); ok {
		var fallbacks map[string][]string
		if err := json.Unmarshal([]byte(v), &fallbacks); err == nil {
			cfg.Fallbacks = fallbacks
		}
	}
	if v, ok := lookup("HYDRAMCP_LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}

	if err := applyYAMLOverrides(home, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadSubscription(lookup func(string) (string, bool), prefix string, sc *SubscriptionConfig) {
	if v, ok := lookup("HYDRAMCP_" + prefix + "_CREDENTIALS_DIR"); ok {
		sc.CredentialsDir = v
	}
	if v, ok := lookup("HYDRAMCP_" + prefix + "_REFRESH_URL"); ok {
		sc.RefreshURL = v
	}
	if v, ok := lookup("HYDRAMCP_" + prefix + "_CLIENT_ID"); ok {
		sc.ClientID = v
	}
	if v, ok := lookup("HYDRAMCP_" + prefix + "_BASE_URL"); ok {
		sc.BaseURL = v
	}
}

// readEnvFile parses a minimal key=value file: blank lines and lines
// starting with "#" are ignored, values are not quote-aware beyond a
// single layer of surrounding double quotes. A missing file is not an
// error — it simply contributes no overrides.
func readEnvFile(path string) (map[string]string, error) {
	out := make(map[string]string)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
			val = val[1 : len(val)-1]
		}
		out[key] = val
	}
	return out, scanner.Err()
}

// RequestTimeout returns RequestTimeoutMS as a time.Duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// Validate reports configuration combinations that would make the
// server unable to serve anything useful.
func (c *Config) Validate() error {
	if c.MaxFailures <= 0 {
		return fmt.Errorf("max_failures must be positive, got %d", c.MaxFailures)
	}
	if c.CooldownMS <= 0 {
		return fmt.Errorf("cooldown_ms must be positive, got %d", c.CooldownMS)
	}
	if c.CacheMaxEntries <= 0 {
		return fmt.Errorf("cache_max_entries must be positive, got %d", c.CacheMaxEntries)
	}
	haveAny := c.OpenAI.APIKey != "" || c.Anthropic.APIKey != "" || c.Gemini.APIKey != "" ||
		c.LocalModel.BaseURL != "" ||
		c.AnthropicSubscription.RefreshURL != "" || c.OpenAISubscription.RefreshURL != "" || c.GeminiSubscription.RefreshURL != ""
	if !haveAny {
		return fmt.Errorf("no backend is configured: set at least one API key, local model base URL, or subscription refresh URL")
	}
	return nil
}
