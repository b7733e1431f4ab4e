package cache

import (
	"container/list"
	"sync"
)

// DefaultMemoryMaxBytes is the default in-memory cache budget (64MB).
const DefaultMemoryMaxBytes int64 = 64 << 20

// Memory is an in-memory Cache bounded by total span bytes, evicting
// least recently used entries once the budget is exceeded.
type Memory struct {
	mu       sync.Mutex
	maxBytes int64
	size     int64
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
}

type memoryEntry struct {
	key     string
	content []byte
}

// MemoryOption configures a Memory cache.
type MemoryOption func(*Memory)

// WithMaxBytes sets the total size budget. Use 0 for unlimited.
func WithMaxBytes(n int64) MemoryOption {
	return func(c *Memory) {
		c.maxBytes = n
	}
}

// NewMemory creates an in-memory cache with the default byte budget.
func NewMemory(opts ...MemoryOption) *Memory {
	c := &Memory{
		maxBytes: DefaultMemoryMaxBytes,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get retrieves a span by key, promoting it to most recently used.
func (c *Memory) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*memoryEntry).content, true //nolint:errcheck // type is guaranteed by Put
}

// Put stores a span under key. A span larger than the whole budget is
// dropped rather than evicting everything else.
func (c *Memory) Put(key string, content []byte) error {
	if c.maxBytes > 0 && int64(len(content)) > c.maxBytes {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		return nil
	}

	elem := c.order.PushFront(&memoryEntry{key: key, content: content})
	c.entries[key] = elem
	c.size += int64(len(content))

	if c.maxBytes > 0 {
		c.evictLocked(c.maxBytes)
	}
	return nil
}

// MaxBytes returns the configured size budget (0 = unlimited).
func (c *Memory) MaxBytes() int64 {
	return c.maxBytes
}

// SizeBytes returns the current cache size in bytes.
func (c *Memory) SizeBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Prune evicts least recently used spans until the cache is at or
// below targetBytes. Returns the number of bytes freed.
func (c *Memory) Prune(targetBytes int64) int64 {
	if targetBytes < 0 {
		targetBytes = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	before := c.size
	c.evictLocked(targetBytes)
	return before - c.size
}

// evictLocked removes entries from the back of the LRU list until the
// size is at or below limit. Caller must hold c.mu.
func (c *Memory) evictLocked(limit int64) {
	for c.size > limit {
		oldest := c.order.Back()
		if oldest == nil {
			return
		}
		entry := oldest.Value.(*memoryEntry) //nolint:errcheck // type is guaranteed by Put
		c.order.Remove(oldest)
		delete(c.entries, entry.key)
		c.size -= int64(len(entry.content))
	}
}
