// Package cache implements the two caches of §4.6 and §4.7:
// ResponseCache, a content-addressed LRU with TTL expiry, and
// ModelListCache, a single-slot TTL cache for a backend's model
// catalog. ResponseCache's LRU is adapted line-for-line from
// llm/cache/prompt_cache.go's LRUCache in the teacher repo,
// generalized from a two-level local+Redis cache to a single
// in-memory level (the Redis tier serves cross-process persistence,
// which is explicitly out of scope here).
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JustHereToHelp/HydraMCP/types"
)

// Key builds the content-address for a query: a sha256 digest over
// model, prompt, and the canonical (key-sorted) JSON encoding of
// opts, so that option ordering never causes a spurious miss.
func Key(model, prompt string, opts types.QueryOptions) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	h.Write([]byte{0})
	h.Write([]byte(canonicalOptions(opts)))
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalOptions renders opts as JSON with object keys in a fixed
// order, independent of struct field order, so the same options
// always hash identically.
func canonicalOptions(opts types.QueryOptions) string {
	m := map[string]any{
		"system_prompt": opts.SystemPrompt,
		"max_tokens":    opts.MaxTokens,
	}
	if opts.Temperature != nil {
		m["temperature"] = *opts.Temperature
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]byte, 0, 128)
	ordered = append(ordered, '{')
	for i, k := range keys {
		if i > 0 {
			ordered = append(ordered, ',')
		}
		kv, _ := json.Marshal(k)
		vv, _ := json.Marshal(m[k])
		ordered = append(ordered, kv...)
		ordered = append(ordered, ':')
		ordered = append(ordered, vv...)
	}
	ordered = append(ordered, '}')
	return string(ordered)
}

type lruNode struct {
	key       string
	entry     types.CacheEntry
	expiresAt time.Time
	prev      *lruNode
	next      *lruNode
}

// ResponseCache is a content-addressed LRU cache of query responses
// with TTL expiry, capped at a maximum entry count.
type ResponseCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*lruNode
	head     *lruNode
	tail     *lruNode
	logger   *zap.Logger
}

const (
	DefaultTTL         = 15 * time.Minute
	DefaultMaxEntries  = 100
)

func NewResponseCache(maxEntries int, ttl time.Duration, logger *zap.Logger) *ResponseCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResponseCache{
		capacity: maxEntries,
		ttl:      ttl,
		items:    make(map[string]*lruNode),
		logger:   logger,
	}
}

// Get returns the cached response for key if present and unexpired,
// promoting it to most-recently-used.
func (c *ResponseCache) Get(key string) (types.QueryResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.items[key]
	if !ok {
		return types.QueryResponse{}, false
	}
	if time.Now().After(node.expiresAt) {
		c.removeNode(node)
		delete(c.items, key)
		return types.QueryResponse{}, false
	}
	c.moveToHead(node)
	return node.entry.Response, true
}

// Set inserts resp under key, evicting the least-recently-used entry
// if the cache is at capacity.
func (c *ResponseCache) Set(key string, resp types.QueryResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := types.CacheEntry{Response: resp, InsertedMS: time.Now().UnixMilli()}

	if node, ok := c.items[key]; ok {
		node.entry = entry
		node.expiresAt = time.Now().Add(c.ttl)
		c.moveToHead(node)
		return
	}

	if len(c.items) >= c.capacity {
		c.evictTail()
	}

	node := &lruNode{key: key, entry: entry, expiresAt: time.Now().Add(c.ttl)}
	c.items[key] = node
	c.addToHead(node)
}

func (c *ResponseCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*lruNode)
	c.head, c.tail = nil, nil
}

func (c *ResponseCache) addToHead(node *lruNode) {
	node.prev = nil
	node.next = c.head
	if c.head != nil {
		c.head.prev = node
	}
	c.head = node
	if c.tail == nil {
		c.tail = node
	}
}

func (c *ResponseCache) removeNode(node *lruNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		c.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		c.tail = node.prev
	}
}

func (c *ResponseCache) moveToHead(node *lruNode) {
	if node == c.head {
		return
	}
	c.removeNode(node)
	c.addToHead(node)
}

func (c *ResponseCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.items, c.tail.key)
	c.removeNode(c.tail)
}

// ModelListCache is a single-slot TTL cache for one backend's model
// catalog, avoiding a discovery round-trip on every list_models call.
type ModelListCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	models    []types.ModelInfo
	fetchedAt time.Time
}

const DefaultModelListTTL = 30 * time.Second

func NewModelListCache(ttl time.Duration) *ModelListCache {
	if ttl <= 0 {
		ttl = DefaultModelListTTL
	}
	return &ModelListCache{ttl: ttl}
}

func (c *ModelListCache) Get() ([]types.ModelInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.models == nil || time.Since(c.fetchedAt) > c.ttl {
		return nil, false
	}
	return c.models, true
}

func (c *ModelListCache) Set(models []types.ModelInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models = models
	c.fetchedAt = time.Now()
}

func (c *ModelListCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models = nil
}
