// Package tokencount estimates token counts for prompt budgeting
// (distillation's skip-band, session_recap's budget formula). Adapted
// from llm/tokenizer/tiktoken.go in the teacher repo: tiktoken-go
// gives exact BPE counts for the OpenAI/BPE-encoded families; every
// other family (Anthropic, Gemini, local models) has no public BPE
// table to load, so it keeps the teacher's own fallback idiom — a
// chars/4 approximation — rather than fabricating an encoding.
package tokencount

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

func cl100k() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding("cl100k_base")
	})
	return enc, encErr
}

// isBPEFamily reports whether model belongs to a family tiktoken has
// an encoding table for. Everything else falls back to the
// char-count approximation.
func isBPEFamily(model string) bool {
	id := strings.ToLower(model)
	return strings.Contains(id, "gpt-") || strings.Contains(id, "o1") ||
		strings.Contains(id, "o3") || strings.Contains(id, "o4")
}

// Estimate returns an approximate token count for text as produced by
// model. BPE families use tiktoken's cl100k_base encoding; everything
// else uses ceil(len(text)/4), the same ratio §4.9's "context saved"
// metric and §4.10's distillation skip-band use as their fallback.
func Estimate(model, text string) int {
	if isBPEFamily(model) {
		if encoder, err := cl100k(); err == nil {
			return len(encoder.Encode(text, nil, nil))
		}
	}
	return CharEstimate(text)
}

// CharEstimate is the plain chars/4 approximation used whenever a
// reported completion-token count is unavailable.
func CharEstimate(text string) int {
	return (len(text) + 3) / 4
}
