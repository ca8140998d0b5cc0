package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hydrabackend "github.com/JustHereToHelp/HydraMCP/backend"
	"github.com/JustHereToHelp/HydraMCP/orchestrator/circuitbreaker"
	"github.com/JustHereToHelp/HydraMCP/types"
)

// fakeInner is a hand-written backend.Backend fake, in the same spirit
// as multi.fakeBackend: no mocking framework, just enough behavior to
// drive SmartBackend's own logic.
type fakeInner struct {
	queryFunc func(ctx context.Context, model, prompt string, opts types.QueryOptions) (types.QueryResponse, error)
	calls     []string
	models    []types.ModelInfo
}

func (f *fakeInner) HealthCheck(context.Context) bool { return true }

func (f *fakeInner) ListModels(context.Context) ([]types.ModelInfo, error) {
	return f.models, nil
}

func (f *fakeInner) Query(ctx context.Context, model, prompt string, opts types.QueryOptions) (types.QueryResponse, error) {
	f.calls = append(f.calls, model)
	return f.queryFunc(ctx, model, prompt, opts)
}

var _ hydrabackend.Backend = (*fakeInner)(nil)

// TestQuery_CacheHitIsZeroLatencyAndSkipsBackend is S1 / invariant 1:
// a repeated identical query is served from the ResponseCache with
// LatencyMS == 0, and the inner backend is dispatched exactly once.
func TestQuery_CacheHitIsZeroLatencyAndSkipsBackend(t *testing.T) {
	inner := &fakeInner{
		queryFunc: func(context.Context, string, string, types.QueryOptions) (types.QueryResponse, error) {
			time.Sleep(5 * time.Millisecond) // ensures the live call's LatencyMS > 0
			return types.QueryResponse{
				Content: "hi",
				Usage:   &types.TokenUsage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2},
			}, nil
		},
	}
	sb := New(Options{
		Inner:           inner,
		CacheMaxEntries: 10,
		CacheTTL:        time.Minute,
		ModelListTTL:    time.Minute,
		BreakerConfig:   circuitbreaker.DefaultConfig(),
		MetricsNS:       "smartbackend_test_cachehit",
	})

	first, err := sb.Query(context.Background(), "m1", "p", types.QueryOptions{})
	require.NoError(t, err)
	assert.Greater(t, first.LatencyMS, int64(0))

	second, err := sb.Query(context.Background(), "m1", "p", types.QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), second.LatencyMS)
	assert.Equal(t, "hi", second.Content)

	assert.Equal(t, []string{"m1"}, inner.calls, "second call must be served from cache, not dispatched")
}

// TestListModels_ExcludesModelsWithOpenCircuit is invariant 4:
// list_models never returns an id whose circuit is currently open,
// even though the underlying catalog still lists it.
func TestListModels_ExcludesModelsWithOpenCircuit(t *testing.T) {
	inner := &fakeInner{
		models: []types.ModelInfo{{ID: "a"}, {ID: "b"}},
		queryFunc: func(_ context.Context, model, _ string, _ types.QueryOptions) (types.QueryResponse, error) {
			if model == "a" {
				return types.QueryResponse{}, types.BackendError("fake", "a", 500, "boom")
			}
			return types.QueryResponse{Content: "ok"}, nil
		},
	}
	sb := New(Options{
		Inner:           inner,
		CacheMaxEntries: 10,
		CacheTTL:        time.Minute,
		ModelListTTL:    time.Minute,
		BreakerConfig:   circuitbreaker.Config{MaxFailures: 1, Cooldown: time.Hour},
		MetricsNS:       "smartbackend_test_circuitfilter",
	})

	_, err := sb.Query(context.Background(), "a", "p", types.QueryOptions{})
	require.Error(t, err)

	models, err := sb.ListModels(context.Background())
	require.NoError(t, err)

	var ids []string
	for _, m := range models {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"b"}, ids, "model a's circuit is open and must be filtered out")
}
