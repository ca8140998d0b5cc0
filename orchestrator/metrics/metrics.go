// Package metrics tracks per-model query statistics and a session
// summary (§4 data model), alongside ambient Prometheus counters and
// histograms in the "hydramcp" namespace. The promauto wiring pattern
// is grounded on internal/metrics.NewCollector in the teacher repo;
// the in-memory ModelStats/SessionSummary structs are new, directly
// reachable state exposed through Stats and Session; no tool handler
// reads them.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/JustHereToHelp/HydraMCP/types"
)

// Collector tracks request counts, latency, and token usage per model
// id, plus a running session-wide summary, and mirrors each update
// into Prometheus so an operator can scrape the same numbers out of
// process.
type Collector struct {
	mu      sync.Mutex
	stats   map[string]*types.ModelStats
	session types.SessionSummary
	logger  *zap.Logger

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokensTotal     *prometheus.CounterVec
	cacheHitsTotal  prometheus.Counter
	circuitState    *prometheus.GaugeVec
}

func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if namespace == "" {
		namespace = "hydramcp"
	}
	return &Collector{
		stats:  make(map[string]*types.ModelStats),
		logger: logger,

		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_requests_total",
			Help:      "Total number of model queries, by model and outcome.",
		}, []string{"model", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_request_duration_seconds",
			Help:      "Model query latency in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"model"}),

		tokensTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_tokens_total",
			Help:      "Total tokens used, by model and token kind.",
		}, []string{"model", "kind"}),

		cacheHitsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total response cache hits across all models.",
		}),

		circuitState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_state",
			Help:      "Current circuit breaker state per model (0=closed, 1=open, 2=half_open).",
		}, []string{"model"}),
	}
}

func (c *Collector) statsFor(model string) *types.ModelStats {
	s, ok := c.stats[model]
	if !ok {
		s = &types.ModelStats{}
		c.stats[model] = s
	}
	return s
}

// RecordSuccess records a successful query against model: latency,
// token usage (if known), and the session/model counters.
func (c *Collector) RecordSuccess(model string, latency time.Duration, usage *types.TokenUsage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.statsFor(model)
	s.Queries++
	s.Successes++
	s.TotalLatencyMS += latency.Milliseconds()
	s.LastQueryMS = time.Now().UnixMilli()
	if usage != nil {
		s.TotalTokens += int64(usage.TotalTokens)
	}
	c.session.TotalQueries++

	c.requestsTotal.WithLabelValues(model, "success").Inc()
	c.requestDuration.WithLabelValues(model).Observe(latency.Seconds())
	if usage != nil {
		c.tokensTotal.WithLabelValues(model, "prompt").Add(float64(usage.PromptTokens))
		c.tokensTotal.WithLabelValues(model, "completion").Add(float64(usage.CompletionTokens))
	}
}

// RecordFailure records a failed query against model.
func (c *Collector) RecordFailure(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.statsFor(model)
	s.Queries++
	s.Failures++
	s.LastQueryMS = time.Now().UnixMilli()
	c.session.TotalQueries++
	c.session.TotalFailures++

	c.requestsTotal.WithLabelValues(model, "failure").Inc()
}

// RecordCacheHit records a response cache hit, crediting the saved
// tokens to the session summary returned by Session.
func (c *Collector) RecordCacheHit(model string, tokensSaved int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session.CacheHits++
	c.session.CacheTokensSaved += int64(tokensSaved)
	c.cacheHitsTotal.Inc()
}

// SetCircuitState mirrors a model's current circuit state into the
// gauge so it can be scraped alongside the in-memory view.
func (c *Collector) SetCircuitState(model string, state types.CircuitState) {
	c.circuitState.WithLabelValues(model).Set(float64(state))
}

// Stats returns a snapshot of the per-model statistics accumulated so
// far, keyed by model id.
func (c *Collector) Stats() map[string]types.ModelStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]types.ModelStats, len(c.stats))
	for model, s := range c.stats {
		out[model] = *s
	}
	return out
}

// Session returns a snapshot of the running session summary.
func (c *Collector) Session() types.SessionSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}
