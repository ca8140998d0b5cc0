package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustHereToHelp/HydraMCP/types"
)

func TestKey_StableUnderOptionFieldOrder(t *testing.T) {
	temp := 0.5
	a := Key("gpt-4", "hello", types.QueryOptions{Temperature: &temp, MaxTokens: 100, SystemPrompt: "sys"})
	b := Key("gpt-4", "hello", types.QueryOptions{SystemPrompt: "sys", MaxTokens: 100, Temperature: &temp})
	assert.Equal(t, a, b, "canonicalOptions must hash identically regardless of struct field order")
}

func TestKey_DiffersOnAnyComponent(t *testing.T) {
	base := Key("gpt-4", "hello", types.QueryOptions{MaxTokens: 100})
	assert.NotEqual(t, base, Key("gpt-4", "goodbye", types.QueryOptions{MaxTokens: 100}))
	assert.NotEqual(t, base, Key("claude", "hello", types.QueryOptions{MaxTokens: 100}))
	assert.NotEqual(t, base, Key("gpt-4", "hello", types.QueryOptions{MaxTokens: 200}))
}

func TestResponseCache_SetGetHit(t *testing.T) {
	c := NewResponseCache(10, time.Minute, nil)
	resp := types.QueryResponse{Model: "gpt-4", Content: "hi"}
	c.Set("k1", resp)

	got, ok := c.Get("k1")
	require.True(t, ok)
	assert.Equal(t, resp, got)
}

func TestResponseCache_MissOnUnknownKey(t *testing.T) {
	c := NewResponseCache(10, time.Minute, nil)
	_, ok := c.Get("nope")
	assert.False(t, ok)
}

func TestResponseCache_ExpiresAfterTTL(t *testing.T) {
	c := NewResponseCache(10, time.Millisecond, nil)
	c.Set("k1", types.QueryResponse{Content: "hi"})
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("k1")
	assert.False(t, ok, "entry should have expired")
	assert.Equal(t, 0, c.Size(), "expired entry should be evicted on access")
}

func TestResponseCache_EvictsLeastRecentlyUsedAtCapacity(t *testing.T) {
	c := NewResponseCache(2, time.Minute, nil)
	c.Set("a", types.QueryResponse{Content: "a"})
	c.Set("b", types.QueryResponse{Content: "b"})

	// touch "a" so "b" becomes the least-recently-used entry.
	_, _ = c.Get("a")

	c.Set("c", types.QueryResponse{Content: "c"})

	_, aOK := c.Get("a")
	_, bOK := c.Get("b")
	_, cOK := c.Get("c")
	assert.True(t, aOK, "recently-used entry should survive eviction")
	assert.False(t, bOK, "least-recently-used entry should be evicted")
	assert.True(t, cOK, "newly inserted entry should be present")
	assert.Equal(t, 2, c.Size())
}

func TestResponseCache_SetOnExistingKeyRefreshesRecency(t *testing.T) {
	c := NewResponseCache(2, time.Minute, nil)
	c.Set("a", types.QueryResponse{Content: "a1"})
	c.Set("b", types.QueryResponse{Content: "b"})
	c.Set("a", types.QueryResponse{Content: "a2"})

	c.Set("c", types.QueryResponse{Content: "c"})

	got, ok := c.Get("a")
	require.True(t, ok, "re-set entry should have been promoted and survived eviction")
	assert.Equal(t, "a2", got.Content)

	_, bOK := c.Get("b")
	assert.False(t, bOK, "b should have been evicted as least-recently-used")
}

func TestResponseCache_Clear(t *testing.T) {
	c := NewResponseCache(10, time.Minute, nil)
	c.Set("a", types.QueryResponse{Content: "a"})
	c.Clear()
	assert.Equal(t, 0, c.Size())
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestModelListCache_SetGetInvalidate(t *testing.T) {
	c := NewModelListCache(time.Minute)

	_, ok := c.Get()
	assert.False(t, ok, "empty cache should miss")

	models := []types.ModelInfo{{ID: "gpt-4"}}
	c.Set(models)

	got, ok := c.Get()
	require.True(t, ok)
	assert.Equal(t, models, got)

	c.Invalidate()
	_, ok = c.Get()
	assert.False(t, ok, "invalidated cache should miss")
}

func TestModelListCache_ExpiresAfterTTL(t *testing.T) {
	c := NewModelListCache(time.Millisecond)
	c.Set([]types.ModelInfo{{ID: "gpt-4"}})
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get()
	assert.False(t, ok, "stale catalog should miss after TTL elapses")
}
