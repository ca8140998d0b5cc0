package tokencount

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCharEstimate(t *testing.T) {
	assert.Equal(t, 0, CharEstimate(""))
	assert.Equal(t, 1, CharEstimate("a"))
	assert.Equal(t, 1, CharEstimate("abcd"))
	assert.Equal(t, 2, CharEstimate("abcde"))
}

func TestEstimate_BPEFamilyReturnsPositiveCount(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog."
	// cl100k_base loads its ranks lazily and may be unavailable offline,
	// in which case Estimate falls back to CharEstimate; either path
	// must return a sane positive count.
	assert.Greater(t, Estimate("gpt-4o", text), 0)
}

func TestEstimate_NonBPEFamilyFallsBackToCharEstimate(t *testing.T) {
	text := strings.Repeat("word ", 50)
	assert.Equal(t, CharEstimate(text), Estimate("claude-3-5-sonnet", text))
	assert.Equal(t, CharEstimate(text), Estimate("gemini-2.0-flash", text))
}

func TestIsBPEFamily(t *testing.T) {
	assert.True(t, isBPEFamily("gpt-4o"))
	assert.True(t, isBPEFamily("openai/o1-preview"))
	assert.True(t, isBPEFamily("o3-mini"))
	assert.False(t, isBPEFamily("claude-3-5-sonnet"))
	assert.False(t, isBPEFamily("gemini-2.0-flash"))
}
