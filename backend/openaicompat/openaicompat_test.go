package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustHereToHelp/HydraMCP/backend"
	"github.com/JustHereToHelp/HydraMCP/types"
)

func newTestBackend(t *testing.T, srv *httptest.Server) *Backend {
	t.Helper()
	client := backend.NewRateLimitedClient(5*time.Second, 1000, 1000)
	return New(Config{BaseURL: srv.URL, APIKey: "test-key", Timeout: 5 * time.Second}, client, nil)
}

func TestQuery_HappyPathParsesChoiceAndUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"finish_reason": "stop", "message": map[string]any{"content": "hello there"}},
			},
			"usage": map[string]any{"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7},
		})
	}))
	defer srv.Close()

	b := newTestBackend(t, srv)
	resp, err := b.Query(context.Background(), "gpt-4o", "hi", types.QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 7, resp.Usage.TotalTokens)
}

func TestQuery_LocalModelServerDialectUsesEvalCounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"response": "generated text", "done_reason": "stop",
			"prompt_eval_count": 10, "eval_count": 4,
		})
	}))
	defer srv.Close()

	client := backend.NewRateLimitedClient(5*time.Second, 1000, 1000)
	b := New(Config{BaseURL: srv.URL, Timeout: 5 * time.Second, Dialect: DialectLocalModelServer}, client, nil)

	resp, err := b.Query(context.Background(), "local-model", "hi", types.QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, "generated text", resp.Content)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 10, resp.Usage.PromptTokens)
	assert.Equal(t, 4, resp.Usage.CompletionTokens)
	assert.Equal(t, 14, resp.Usage.TotalTokens)
}

func TestQuery_RetriesOn503ThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("overloaded"))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": "finally worked"}}},
		})
	}))
	defer srv.Close()

	b := newTestBackend(t, srv)
	resp, err := b.Query(context.Background(), "gpt-4o", "hi", types.QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, "finally worked", resp.Content)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestQuery_DoesNotRetryOn400(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad request"))
	}))
	defer srv.Close()

	b := newTestBackend(t, srv)
	_, err := b.Query(context.Background(), "gpt-4o", "hi", types.QueryOptions{})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestQuery_401MapsToAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	b := newTestBackend(t, srv)
	_, err := b.Query(context.Background(), "gpt-4o", "hi", types.QueryOptions{})
	require.Error(t, err)
	var e *types.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, types.ErrAuth, e.Code)
}

func TestQuery_EmptyChoicesIsEmptyResponseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []map[string]any{}})
	}))
	defer srv.Close()

	b := newTestBackend(t, srv)
	_, err := b.Query(context.Background(), "gpt-4o", "hi", types.QueryOptions{})
	require.Error(t, err)
	var e *types.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, types.ErrEmptyResponse, e.Code)
}

func TestHealthCheck_TrueOn200FalseOtherwise(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer down.Close()

	assert.True(t, newTestBackend(t, ok).HealthCheck(context.Background()))
	assert.False(t, newTestBackend(t, down).HealthCheck(context.Background()))
}

func TestListModels_ReturnsStaticCatalogWhenConfigured(t *testing.T) {
	client := backend.NewRateLimitedClient(5*time.Second, 1000, 1000)
	b := New(Config{BaseURL: "http://unused.invalid", Models: []types.ModelInfo{{ID: "gpt-4o"}}}, client, nil)
	models, err := b.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.ModelInfo{{ID: "gpt-4o"}}, models)
}

func TestListModels_FetchesFromEndpointWhenNoStaticCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": "gpt-4o"}, {"id": "gpt-4o-mini"}},
		})
	}))
	defer srv.Close()

	b := newTestBackend(t, srv)
	models, err := b.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "gpt-4o", models[0].ID)
}
