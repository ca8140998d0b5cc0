// Package circuitbreaker tracks per-model consecutive-failure circuit
// state: closed, open, half_open. It is adapted directly from
// llm/circuitbreaker/breaker.go in the teacher repo, generalized from
// a single global breaker instance to a Registry keyed by model id,
// and trimmed to the consecutive-failure variant with exactly one
// half-open probe (the teacher's HalfOpenMaxCalls knob is dropped —
// §9 permits only a single probe before deciding).
package circuitbreaker

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JustHereToHelp/HydraMCP/types"
)

// Config tunes the failure threshold and cooldown shared by every
// model tracked in a Registry.
type Config struct {
	MaxFailures int
	Cooldown    time.Duration
}

func DefaultConfig() Config {
	return Config{MaxFailures: 3, Cooldown: 60 * time.Second}
}

type modelState struct {
	state               types.CircuitState
	consecutiveFailures int
	lastFailure         time.Time
	halfOpenProbeInFlight bool
}

// Registry is a per-model circuit breaker. 状态转换在读时惰性发生:
// an Open model flips to HalfOpen the first time it's checked after
// Cooldown has elapsed, rather than on a background timer.
type Registry struct {
	cfg    Config
	logger *zap.Logger

	mu     sync.Mutex
	models map[string]*modelState
}

func NewRegistry(cfg Config, logger *zap.Logger) *Registry {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 60 * time.Second
	}
	return &Registry{cfg: cfg, logger: logger, models: make(map[string]*modelState)}
}

func (r *Registry) stateFor(model string) *modelState {
	s, ok := r.models[model]
	if !ok {
		s = &modelState{state: types.CircuitClosed}
		r.models[model] = s
	}
	return s
}

// IsOpen reports whether model is currently gated from dispatch. A
// model in cooldown transitions to half_open as a side effect of this
// check and is granted exactly one probe, reported as not-open so the
// caller's single in-flight query can go through.
func (r *Registry) IsOpen(model string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.stateFor(model)
	switch s.state {
	case types.CircuitClosed:
		return false
	case types.CircuitHalfOpen:
		return s.halfOpenProbeInFlight
	case types.CircuitOpen:
		if time.Since(s.lastFailure) < r.cfg.Cooldown {
			return true
		}
		s.state = types.CircuitHalfOpen
		s.halfOpenProbeInFlight = true
		if r.logger != nil {
			r.logger.Debug("circuit entering half_open", zap.String("model", model))
		}
		return false
	}
	return false
}

// RecordSuccess resets the model to closed, clearing its failure
// count whether it was closed already or recovering from half_open.
func (r *Registry) RecordSuccess(model string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.stateFor(model)
	if s.state == types.CircuitHalfOpen && r.logger != nil {
		r.logger.Info("circuit closed after half_open probe succeeded", zap.String("model", model))
	}
	s.state = types.CircuitClosed
	s.consecutiveFailures = 0
	s.halfOpenProbeInFlight = false
}

// RecordFailure increments the consecutive-failure count and opens
// the circuit once it reaches MaxFailures, or immediately re-opens a
// half_open probe that failed.
func (r *Registry) RecordFailure(model string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.stateFor(model)
	s.lastFailure = time.Now()

	if s.state == types.CircuitHalfOpen {
		s.state = types.CircuitOpen
		s.halfOpenProbeInFlight = false
		if r.logger != nil {
			r.logger.Warn("circuit re-opened after half_open probe failed", zap.String("model", model))
		}
		return
	}

	s.consecutiveFailures++
	if s.consecutiveFailures >= r.cfg.MaxFailures {
		s.state = types.CircuitOpen
		if r.logger != nil {
			r.logger.Warn("circuit opened",
				zap.String("model", model),
				zap.Int("consecutive_failures", s.consecutiveFailures),
			)
		}
	}
}

// Record looks at record's CircuitState for model, filling in the
// consecutive-failure count and last-failure timestamp for diagnostic
// surfacing (e.g. in list_models output).
func (r *Registry) Record(model string) types.CircuitRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.stateFor(model)
	var lastFailureMS int64
	if !s.lastFailure.IsZero() {
		lastFailureMS = s.lastFailure.UnixMilli()
	}
	return types.CircuitRecord{
		Model:               model,
		State:               s.state,
		ConsecutiveFailures: s.consecutiveFailures,
		LastFailureMS:       lastFailureMS,
	}
}

// OpenModels returns the ids of every model currently gated (open and
// still inside its cooldown, or half_open with a probe already in
// flight). Unlike IsOpen it changes no state.
func (r *Registry) OpenModels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for model, s := range r.models {
		switch s.state {
		case types.CircuitOpen:
			if time.Since(s.lastFailure) < r.cfg.Cooldown {
				out = append(out, model)
			}
		case types.CircuitHalfOpen:
			if s.halfOpenProbeInFlight {
				out = append(out, model)
			}
		}
	}
	return out
}

// Cooldown returns the configured cooldown duration, so callers can
// render a "retry in" message without reaching into Config directly.
func (r *Registry) Cooldown() time.Duration {
	return r.cfg.Cooldown
}

// Reset forces model back to closed, discarding its failure history.
func (r *Registry) Reset(model string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.stateFor(model)
	s.state = types.CircuitClosed
	s.consecutiveFailures = 0
	s.halfOpenProbeInFlight = false
}
