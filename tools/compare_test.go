package tools

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	hydrabackend "github.com/JustHereToHelp/HydraMCP/backend"
	"github.com/JustHereToHelp/HydraMCP/orchestrator"
	"github.com/JustHereToHelp/HydraMCP/orchestrator/circuitbreaker"
	"github.com/JustHereToHelp/HydraMCP/types"
)

// fakeCompareBackend is a hand-written backend.Backend fake, keyed by
// model id, in the same spirit as multi.fakeBackend and
// orchestrator.fakeInner.
type fakeCompareBackend struct {
	byModel map[string]func() (types.QueryResponse, error)
}

func (f *fakeCompareBackend) HealthCheck(context.Context) bool { return true }

func (f *fakeCompareBackend) ListModels(context.Context) ([]types.ModelInfo, error) {
	return nil, nil
}

func (f *fakeCompareBackend) Query(_ context.Context, model, _ string, _ types.QueryOptions) (types.QueryResponse, error) {
	fn, ok := f.byModel[model]
	if !ok {
		return types.QueryResponse{}, types.NewError(types.ErrRouting, "unknown model "+model)
	}
	return fn()
}

var _ hydrabackend.Backend = (*fakeCompareBackend)(nil)

func newTestDeps(inner hydrabackend.Backend, metricsNS string) *Deps {
	sb := orchestrator.New(orchestrator.Options{
		Inner:           inner,
		CacheMaxEntries: 100,
		CacheTTL:        time.Minute,
		ModelListTTL:    time.Minute,
		BreakerConfig:   circuitbreaker.DefaultConfig(),
		MetricsNS:       metricsNS,
	})
	return &Deps{Backend: sb, Logger: zap.NewNop()}
}

// TestCompareModels_TagsFastestAndReportsErrors is S3: three models,
// one fails with a BackendError; the output carries a table with the
// two successful rows (the lower-latency one tagged "fastest"), a
// response block per success, and an Errors section for the failure —
// never an is_error result, since at least one branch succeeded.
func TestCompareModels_TagsFastestAndReportsErrors(t *testing.T) {
	inner := &fakeCompareBackend{byModel: map[string]func() (types.QueryResponse, error){
		"fast-model": func() (types.QueryResponse, error) {
			return types.QueryResponse{Content: "quick answer"}, nil
		},
		"slow-model": func() (types.QueryResponse, error) {
			time.Sleep(20 * time.Millisecond)
			return types.QueryResponse{Content: "slow answer"}, nil
		},
		"broken-model": func() (types.QueryResponse, error) {
			return types.QueryResponse{}, types.BackendError("fake", "broken-model", 500, "boom")
		},
	}}
	deps := newTestDeps(inner, "compare_test_fastest")

	result := CompareModels(context.Background(), deps, map[string]any{
		"models": []any{"fast-model", "slow-model", "broken-model"},
		"prompt": "what's the weather?",
	})

	require.False(t, result.IsError)
	assert.Contains(t, result.Text, "quick answer")
	assert.Contains(t, result.Text, "slow answer")
	assert.Contains(t, result.Text, "### Errors")
	assert.Contains(t, result.Text, "broken-model")
	assert.Contains(t, result.Text, "boom")

	var fastLine, slowLine string
	for _, line := range strings.Split(result.Text, "\n") {
		switch {
		case strings.HasPrefix(line, "| fast-model |"):
			fastLine = line
		case strings.HasPrefix(line, "| slow-model |"):
			slowLine = line
		}
	}
	require.NotEmpty(t, fastLine)
	require.NotEmpty(t, slowLine)
	assert.Contains(t, fastLine, "fastest", "the lower-latency row must be tagged fastest")
	assert.NotContains(t, slowLine, "fastest")
}

// TestCompareModels_AllFail renders only the Errors block when every
// branch fails.
func TestCompareModels_AllFail(t *testing.T) {
	inner := &fakeCompareBackend{byModel: map[string]func() (types.QueryResponse, error){
		"m1": func() (types.QueryResponse, error) { return types.QueryResponse{}, types.NewError(types.ErrTimeout, "timed out") },
		"m2": func() (types.QueryResponse, error) {
			return types.QueryResponse{}, types.BackendError("fake", "m2", 503, "unavailable")
		},
	}}
	deps := newTestDeps(inner, "compare_test_allfail")

	result := CompareModels(context.Background(), deps, map[string]any{
		"models": []any{"m1", "m2"},
		"prompt": "hi",
	})

	assert.Contains(t, result.Text, "### Errors")
	assert.NotContains(t, result.Text, "| model | latency | tokens | fastest |")
}
