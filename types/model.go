// Package types holds the data model shared across HydraMCP's backend,
// orchestrator, and tool layers.
package types

// ModelInfo describes one model exposed by a Backend. ID is globally
// unique within the process: once a Backend is registered under a
// provider key, its models are exposed with IDs prefixed
// "<provider_key>/<inner id>".
type ModelInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	ProviderKey string `json:"provider_key"`
}

// QueryOptions carries the caller-tunable parameters of a query.
type QueryOptions struct {
	SystemPrompt string   `json:"system_prompt,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	MaxTokens    int      `json:"max_tokens,omitempty"`
}

// TokenUsage reports token accounting for one completion.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// QueryResponse is the normalized result of one backend query.
//
// Invariant: LatencyMS == 0 if and only if the response was served
// from the ResponseCache.
type QueryResponse struct {
	Model            string      `json:"model"`
	Content          string      `json:"content"`
	ReasoningContent string      `json:"reasoning_content,omitempty"`
	Usage            *TokenUsage `json:"usage,omitempty"`
	LatencyMS        int64       `json:"latency_ms"`
	FinishReason     string      `json:"finish_reason,omitempty"`
	Warning          string      `json:"warning,omitempty"`
	FallbackFrom     string      `json:"fallback_from,omitempty"`
}

// Clone returns a copy safe for independent mutation of the top-level
// fields, with its own copy of Usage.
func (r QueryResponse) Clone() QueryResponse {
	out := r
	if r.Usage != nil {
		u := *r.Usage
		out.Usage = &u
	}
	return out
}
