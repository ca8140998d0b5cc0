// Package orchestrator implements SmartBackend, the composition point
// of §4.8: a Backend that wraps an inner Backend (a MultiBackend in
// production) with a circuit breaker, a response cache, a model-list
// cache, and metrics. Its query sequencing — gate, then cache lookup,
// then dispatch, then record — follows the same
// check-then-call-then-record shape as breaker.CallWithResult in
// llm/circuitbreaker/breaker.go in the teacher repo, generalized from
// a single breaker wrapping one function call to five explicit steps
// coordinating three collaborators.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JustHereToHelp/HydraMCP/backend"
	"github.com/JustHereToHelp/HydraMCP/orchestrator/cache"
	"github.com/JustHereToHelp/HydraMCP/orchestrator/circuitbreaker"
	"github.com/JustHereToHelp/HydraMCP/orchestrator/metrics"
	"github.com/JustHereToHelp/HydraMCP/types"
)

// FallbackChains maps a primary model id to a list of alternatives.
// On the primary's failure only the first alternative is tried; if it
// fails too, that alternative's own first alternative is tried, up to
// maxFallbackDepth hops. Later entries in a list are not tried.
type FallbackChains map[string][]string

// maxFallbackDepth bounds the alternative chain walked for one query,
// preventing a misconfigured cycle from cascading indefinitely.
const maxFallbackDepth = 2

// Options configures a SmartBackend instance.
type Options struct {
	Inner           backend.Backend
	Logger          *zap.Logger
	DisableCache    bool
	DisableBreaker  bool
	CacheMaxEntries int
	CacheTTL        time.Duration
	ModelListTTL    time.Duration
	BreakerConfig   circuitbreaker.Config
	Fallbacks       FallbackChains
	MetricsNS       string
}

// SmartBackend composes circuit breaking, response caching, and
// metrics around an inner Backend, itself satisfying the Backend
// contract so tool handlers never see the distinction.
type SmartBackend struct {
	inner          backend.Backend
	logger         *zap.Logger
	disableCache   bool
	disableBreaker bool

	responses  *cache.ResponseCache
	modelList  *cache.ModelListCache
	breaker    *circuitbreaker.Registry
	collector  *metrics.Collector
	fallbacks  FallbackChains
}

func New(opts Options) *SmartBackend {
	breakerCfg := opts.BreakerConfig
	if breakerCfg.MaxFailures <= 0 && breakerCfg.Cooldown <= 0 {
		breakerCfg = circuitbreaker.DefaultConfig()
	}
	return &SmartBackend{
		inner:          opts.Inner,
		logger:         opts.Logger,
		disableCache:   opts.DisableCache,
		disableBreaker: opts.DisableBreaker,
		responses:      cache.NewResponseCache(opts.CacheMaxEntries, opts.CacheTTL, opts.Logger),
		modelList:      cache.NewModelListCache(opts.ModelListTTL),
		breaker:        circuitbreaker.NewRegistry(breakerCfg, opts.Logger),
		collector:      metrics.NewCollector(opts.MetricsNS, opts.Logger),
		fallbacks:      opts.Fallbacks,
	}
}

func (s *SmartBackend) HealthCheck(ctx context.Context) bool {
	return s.inner.HealthCheck(ctx)
}

// Query implements the five-step algorithm of §4.8: circuit gate,
// cache lookup, dispatch, success recording, failure recording — with
// an optional bounded fallback-chain retry on failure.
func (s *SmartBackend) Query(ctx context.Context, model, prompt string, opts types.QueryOptions) (types.QueryResponse, error) {
	return s.queryWithFallback(ctx, model, prompt, opts, "", 0)
}

func (s *SmartBackend) queryWithFallback(ctx context.Context, model, prompt string, opts types.QueryOptions, fallbackFrom string, depth int) (types.QueryResponse, error) {
	resp, err := s.queryOnce(ctx, model, prompt, opts)
	if err == nil {
		if fallbackFrom != "" {
			resp.FallbackFrom = fallbackFrom
		}
		return resp, nil
	}

	if depth >= maxFallbackDepth {
		return types.QueryResponse{}, err
	}
	alternatives := s.fallbacks[model]
	if len(alternatives) == 0 {
		return types.QueryResponse{}, err
	}

	if s.logger != nil {
		s.logger.Info("falling back after model failure",
			zap.String("primary", model), zap.String("alternative", alternatives[0]), zap.Error(err))
	}
	return s.queryWithFallback(ctx, alternatives[0], prompt, opts, model, depth+1)
}

func (s *SmartBackend) queryOnce(ctx context.Context, model, prompt string, opts types.QueryOptions) (types.QueryResponse, error) {
	// 1. Circuit gate.
	if !s.disableBreaker && s.breaker.IsOpen(model) {
		s.collector.RecordFailure(model)
		rec := s.breaker.Record(model)
		remaining := cooldownRemaining(rec, s.breaker)
		return types.QueryResponse{}, types.NewError(types.ErrUnavailable,
			fmt.Sprintf("circuit open for %q, retry in %s", model, remaining)).WithModel(model)
	}

	// 2. Cache lookup.
	key := cache.Key(model, prompt, opts)
	if !s.disableCache {
		if cached, ok := s.responses.Get(key); ok {
			tokensSaved := 0
			if cached.Usage != nil {
				tokensSaved = cached.Usage.TotalTokens
			}
			s.collector.RecordCacheHit(model, tokensSaved)
			s.collector.RecordSuccess(model, 0, cached.Usage)
			cached.LatencyMS = 0
			return cached, nil
		}
	}

	// 3. Dispatch.
	start := time.Now()
	resp, err := s.inner.Query(ctx, model, prompt, opts)
	latency := time.Since(start)

	// 5. On failure.
	if err != nil {
		if !s.disableBreaker {
			s.breaker.RecordFailure(model)
			s.collector.SetCircuitState(model, s.breaker.Record(model).State)
		}
		s.collector.RecordFailure(model)
		return types.QueryResponse{}, err
	}

	// 4. On success.
	if !s.disableBreaker {
		s.breaker.RecordSuccess(model)
		s.collector.SetCircuitState(model, types.CircuitClosed)
	}
	resp.LatencyMS = latency.Milliseconds()
	s.collector.RecordSuccess(model, latency, resp.Usage)
	if !s.disableCache {
		s.responses.Set(key, resp)
	}
	return resp, nil
}

// ListModels reads the merged catalog (cached or fresh) and always
// filters out models whose circuit is currently open, so a model that
// entered cooldown mid-cache-window disappears on the very next call.
func (s *SmartBackend) ListModels(ctx context.Context) ([]types.ModelInfo, error) {
	models, ok := s.modelList.Get()
	if !ok {
		fresh, err := s.inner.ListModels(ctx)
		if err != nil {
			return nil, err
		}
		s.modelList.Set(fresh)
		models = fresh
	}

	if s.disableBreaker {
		return models, nil
	}

	// OpenModels is read-only, unlike IsOpen, which would hand out the
	// single half_open probe to a model that is only being listed.
	gated := make(map[string]bool)
	for _, id := range s.breaker.OpenModels() {
		gated[id] = true
	}
	out := make([]types.ModelInfo, 0, len(models))
	for _, m := range models {
		if !gated[m.ID] {
			out = append(out, m)
		}
	}
	return out, nil
}

// CircuitRecord exposes the underlying breaker's view of model,
// letting tool handlers (list_models) surface circuit state inline.
func (s *SmartBackend) CircuitRecord(model string) types.CircuitRecord {
	return s.breaker.Record(model)
}

// Stats and Session expose the underlying metrics collector's
// snapshots for diagnostics; no tool handler calls them.
func (s *SmartBackend) Stats() map[string]types.ModelStats { return s.collector.Stats() }
func (s *SmartBackend) Session() types.SessionSummary       { return s.collector.Session() }

func cooldownRemaining(rec types.CircuitRecord, reg *circuitbreaker.Registry) time.Duration {
	if rec.LastFailureMS == 0 {
		return 0
	}
	elapsed := time.Since(time.UnixMilli(rec.LastFailureMS))
	remaining := reg.Cooldown() - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining.Round(time.Second)
}
