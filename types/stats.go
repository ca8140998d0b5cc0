package types

// ModelStats accumulates per-model counters for the lifetime of the
// process. Append-only; there is no decay.
type ModelStats struct {
	Queries         int64 `json:"queries"`
	Successes       int64 `json:"successes"`
	Failures        int64 `json:"failures"`
	TotalLatencyMS  int64 `json:"total_latency_ms"`
	TotalTokens     int64 `json:"total_tokens"`
	LastQueryMS     int64 `json:"last_query_ms"`
}

// AvgLatencyMS returns the derived average latency, 0 when Queries == 0.
func (s ModelStats) AvgLatencyMS() float64 {
	if s.Queries == 0 {
		return 0
	}
	return float64(s.TotalLatencyMS) / float64(s.Queries)
}

// SuccessRate returns the derived success rate, defined as 1.0 when
// Queries == 0 (an unqueried model has not yet failed).
func (s ModelStats) SuccessRate() float64 {
	if s.Queries == 0 {
		return 1.0
	}
	return float64(s.Successes) / float64(s.Queries)
}

// SessionSummary is the process-lifetime, session-level accounting
// kept by the metrics collector.
type SessionSummary struct {
	TotalQueries     int64 `json:"total_queries"`
	TotalFailures    int64 `json:"total_failures"`
	CacheHits        int64 `json:"cache_hits"`
	CacheTokensSaved int64 `json:"cache_tokens_saved"`
}
