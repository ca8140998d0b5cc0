// Package multi implements the routing layer of §4.3: a registry of
// backends keyed by provider_key, dispatching a "provider_key/model"
// id to its exclusive owner and a bare id by iterating the registry
// in registration order. Concurrent fan-out (ListModels, HealthCheck)
// is grounded on llm/router/prefix_router.go in the teacher repo,
// generalized from its weighted-pool scoring to a flat ordered
// registry since nothing here needs load-balancing.
package multi

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JustHereToHelp/HydraMCP/backend"
	"github.com/JustHereToHelp/HydraMCP/types"
)

// entry pairs a provider_key with the backend registered under it,
// preserving registration order for bare-id iteration.
type entry struct {
	key     string
	backend backend.Backend
}

// MultiBackend routes queries across a fixed, ordered set of backends.
type MultiBackend struct {
	mu      sync.RWMutex
	entries []entry
	logger  *zap.Logger
}

func New(logger *zap.Logger) *MultiBackend {
	return &MultiBackend{logger: logger}
}

// Register adds a backend under provider_key, in call order. Calling
// Register more than once for the same key replaces the prior entry
// in place, preserving its original position.
func (m *MultiBackend) Register(providerKey string, b backend.Backend) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.entries {
		if e.key == providerKey {
			m.entries[i].backend = b
			return
		}
	}
	m.entries = append(m.entries, entry{key: providerKey, backend: b})
}

// split separates a "provider_key/model" id into its two parts. ok is
// false for a bare id with no recognized provider_key prefix.
func (m *MultiBackend) split(id string) (providerKey, model string, ok bool) {
	idx := strings.Index(id, "/")
	if idx < 0 {
		return "", id, false
	}
	prefix := id[:idx]
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		if e.key == prefix {
			return prefix, id[idx+1:], true
		}
	}
	return "", id, false
}

// Query dispatches exclusively to the prefixed backend when id carries
// a recognized provider_key/ prefix, returning a RoutingError if that
// key is unknown. A bare id is tried against every registered backend
// in registration order, returning the first success; if every backend
// fails, a RoutingError wraps all of their errors.
func (m *MultiBackend) Query(ctx context.Context, id, prompt string, opts types.QueryOptions) (types.QueryResponse, error) {
	if providerKey, model, ok := m.split(id); ok {
		b := m.backendFor(providerKey)
		resp, err := b.Query(ctx, model, prompt, opts)
		if err == nil {
			resp.Model = id
		}
		return resp, err
	}

	if strings.Contains(id, "/") {
		return types.QueryResponse{}, types.NewError(types.ErrRouting,
			fmt.Sprintf("unknown provider_key in model id %q", id))
	}

	m.mu.RLock()
	entries := append([]entry(nil), m.entries...)
	m.mu.RUnlock()

	if len(entries) == 0 {
		return types.QueryResponse{}, types.NewError(types.ErrRouting, "no backends registered")
	}

	var errs []string
	for _, e := range entries {
		resp, err := e.backend.Query(ctx, id, prompt, opts)
		if err == nil {
			return resp, nil
		}
		errs = append(errs, fmt.Sprintf("%s: %v", e.key, err))
	}
	return types.QueryResponse{}, types.NewError(types.ErrRouting,
		fmt.Sprintf("model %q not served by any backend: %s", id, strings.Join(errs, "; ")))
}

func (m *MultiBackend) backendFor(providerKey string) backend.Backend {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		if e.key == providerKey {
			return e.backend
		}
	}
	return nil
}

// ListModels fans out to every registered backend concurrently,
// prefixing each returned id with its provider_key. A single
// backend's failure is logged and excluded, never failing the whole
// call — settled semantics, per §5.
func (m *MultiBackend) ListModels(ctx context.Context) ([]types.ModelInfo, error) {
	m.mu.RLock()
	entries := append([]entry(nil), m.entries...)
	m.mu.RUnlock()

	results := make([][]types.ModelInfo, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			models, err := e.backend.ListModels(gctx)
			if err != nil {
				if m.logger != nil {
					m.logger.Warn("backend failed to list models",
						zap.String("provider_key", e.key), zap.Error(err))
				}
				return nil
			}
			prefixed := make([]types.ModelInfo, len(models))
			for j, mi := range models {
				mi.ProviderKey = e.key
				mi.ID = e.key + "/" + mi.ID
				prefixed[j] = mi
			}
			results[i] = prefixed
			return nil
		})
	}
	_ = g.Wait() // per-backend errors are swallowed above; g never fails

	var out []types.ModelInfo
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// HealthCheck fans out concurrently and reports true iff any
// registered backend is healthy.
func (m *MultiBackend) HealthCheck(ctx context.Context) bool {
	m.mu.RLock()
	entries := append([]entry(nil), m.entries...)
	m.mu.RUnlock()

	if len(entries) == 0 {
		return false
	}

	results := make([]bool, len(entries))
	var wg sync.WaitGroup
	for i, e := range entries {
		i, e := i, e
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = e.backend.HealthCheck(ctx)
		}()
	}
	wg.Wait()

	for _, ok := range results {
		if ok {
			return true
		}
	}
	return false
}
