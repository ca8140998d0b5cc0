// Package reasoning detects reasoning-capable model IDs and computes
// the boosted dispatch parameters §4.2 requires for them.
package reasoning

import (
	"strings"
	"time"

	"github.com/JustHereToHelp/HydraMCP/types"
)

// patterns is the known reasoning-model set: o-series, DeepSeek-r1,
// QwQ, Gemini-thinking variants, Gemini-3-Pro. Matched as a
// case-insensitive substring against the inner model ID (the part
// after any "provider/" prefix), generalizing the prefix-only match
// idiom the router package uses for provider routing to the
// substring match reasoning IDs actually need (they aren't prefix
// uniform across vendors: "o1-preview", "openai/o3-mini",
// "deepseek-r1", "qwq-32b", "gemini-2.0-flash-thinking-exp",
// "gemini-3-pro").
var patterns = []string{
	"o1", "o3", "o4",
	"deepseek-r1",
	"qwq",
	"gemini-3-pro",
	"thinking",
}

// IsReasoningModel reports whether modelID matches a known
// reasoning-model pattern.
func IsReasoningModel(modelID string) bool {
	id := strings.ToLower(modelID)
	if idx := strings.IndexByte(id, '/'); idx >= 0 {
		id = id[idx+1:]
	}
	for _, p := range patterns {
		if strings.Contains(id, p) {
			return true
		}
	}
	return false
}

// BoostedMaxTokens clamps 4·requested into [4096, 16384], per §4.2.
func BoostedMaxTokens(requested int) int {
	boosted := 4 * requested
	if boosted < 4096 {
		return 4096
	}
	if boosted > 16384 {
		return 16384
	}
	return boosted
}

// ExtendedTimeout returns the per-request timeout to use for a
// reasoning-model dispatch, longer than the ambient default since
// reasoning models commonly spend tens of seconds in hidden
// deliberation before emitting visible content.
func ExtendedTimeout(base time.Duration) time.Duration {
	extended := base * 3
	if extended < 5*time.Minute {
		return 5 * time.Minute
	}
	return extended
}

// ApplyContentFallback implements §4.2's content substitution: if the
// backend returned empty visible content but non-empty reasoning
// content, the tool-visible content becomes the reasoning text under a
// clearly labelled prefix.
func ApplyContentFallback(resp *types.QueryResponse) {
	if strings.TrimSpace(resp.Content) != "" || strings.TrimSpace(resp.ReasoningContent) == "" {
		return
	}
	resp.Content = "_[model returned only its reasoning trace; no final answer was emitted]_\n\n" + resp.ReasoningContent
}
