package tools

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JustHereToHelp/HydraMCP/types"
)

func TestRecoveryHint_PerErrorCode(t *testing.T) {
	cases := []struct {
		code types.ErrorCode
		want string
	}{
		{types.ErrValidation, "fix the reported input"},
		{types.ErrRouting, "call list_models"},
		{types.ErrUnavailable, "wait for the circuit"},
		{types.ErrTimeout, "retry, shorten the prompt"},
		{types.ErrTransport, "check network connectivity"},
		{types.ErrEmptyResponse, "retry, rephrase"},
		{types.ErrAuth, "API key or subscription credentials"},
	}
	for _, c := range cases {
		hint := recoveryHint(types.NewError(c.code, "boom"))
		assert.Contains(t, hint, c.want, "code %v", c.code)
	}
}

func TestRecoveryHint_BackendErrorDistinguishesRetryable(t *testing.T) {
	retryable := types.BackendError("openai", "gpt-4o", 503, "overloaded")
	assert.Contains(t, recoveryHint(retryable), "retry shortly")

	nonRetryable := types.BackendError("openai", "gpt-4o", 400, "bad request")
	assert.Contains(t, recoveryHint(nonRetryable), "rejected the request")
}

func TestRecoveryHint_NonTypesErrorGetsGenericHint(t *testing.T) {
	hint := recoveryHint(errors.New("something went wrong"))
	assert.Contains(t, hint, "try a different model")
}

func TestErrorBlock_IncludesModelMessageAndRecovery(t *testing.T) {
	block := errorBlock("gpt-4o", types.NewError(types.ErrTimeout, "deadline exceeded"))
	assert.Contains(t, block, "gpt-4o")
	assert.Contains(t, block, "deadline exceeded")
	assert.Contains(t, block, "**Recovery:**")
}

func TestFormatMarkdownError_HasTitleAndRecovery(t *testing.T) {
	out := formatMarkdownError("Invalid input", types.NewError(types.ErrValidation, "models is required"))
	assert.Contains(t, out, "### Invalid input")
	assert.Contains(t, out, "models is required")
	assert.Contains(t, out, "**Recovery:**")
}

func TestLatencyLine_ZeroMeansCached(t *testing.T) {
	assert.Equal(t, "Latency: 0ms (cached)", latencyLine(types.QueryResponse{LatencyMS: 0}))
	assert.Equal(t, "Latency: 120ms", latencyLine(types.QueryResponse{LatencyMS: 120}))
}

func TestResponseBlock_NotesCacheAndFallback(t *testing.T) {
	cached := responseBlock("gpt-4o", types.QueryResponse{Content: "hi", LatencyMS: 0})
	assert.Contains(t, cached, "served from cache")

	fallback := responseBlock("gpt-4o", types.QueryResponse{Content: "hi", LatencyMS: 50, FallbackFrom: "claude-3-5-sonnet"})
	assert.Contains(t, fallback, "fell back from claude-3-5-sonnet")
}

func TestSuccessesAndFailures_Partitions(t *testing.T) {
	outcomes := []branchOutcome{
		{model: "a", resp: types.QueryResponse{Content: "ok"}},
		{model: "b", err: errors.New("boom")},
	}
	ok, failed := successesAndFailures(outcomes)
	assert.Len(t, ok, 1)
	assert.Len(t, failed, 1)
	assert.Equal(t, "a", ok[0].model)
	assert.Equal(t, "b", failed[0].model)
}

func TestRenderComparisonTable_TagsFastestAndSkipsFailures(t *testing.T) {
	outcomes := []branchOutcome{
		{model: "slow", resp: types.QueryResponse{LatencyMS: 500}},
		{model: "fast", resp: types.QueryResponse{LatencyMS: 100}},
		{model: "broken", err: errors.New("down")},
	}
	table := renderComparisonTable(outcomes)
	assert.Contains(t, table, "| fast | 100ms | 0 | fastest |")
	assert.Contains(t, table, "| slow | 500ms | 0 |  |")
	assert.NotContains(t, table, "broken")
}

func TestSortedKeys_IsStable(t *testing.T) {
	m := map[string][]types.ModelInfo{"gemini": nil, "anthropic": nil, "openai": nil}
	assert.Equal(t, []string{"anthropic", "gemini", "openai"}, sortedKeys(m))
}
