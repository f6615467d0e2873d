package tutor

import (
	"sync"
	"time"
)

type cacheEntry struct {
	pcm       []byte
	createdAt time.Time
}

// TTSCache memoizes synthesized audio by input text with a time-based expiry.
// Identical read-aloud prompts recur within a session; expiry bounds memory
// without size-based eviction since the working set is small and short-lived.
type TTSCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry

	now func() time.Time
}

func NewTTSCache(ttl time.Duration) *TTSCache {
	return &TTSCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached audio for text if present and not expired. An
// expired entry is evicted and reported absent.
func (c *TTSCache) Get(text string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[text]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.createdAt) >= c.ttl {
		delete(c.entries, text)
		return nil, false
	}
	return entry.pcm, true
}

// Set stores or overwrites audio keyed by exact text.
func (c *TTSCache) Set(text string, pcm []byte) {
	c.mu.Lock()
	c.entries[text] = cacheEntry{pcm: pcm, createdAt: c.now()}
	c.mu.Unlock()
}

// Cleanup sweeps all expired entries.
func (c *TTSCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for key, entry := range c.entries {
		if now.Sub(entry.createdAt) >= c.ttl {
			delete(c.entries, key)
		}
	}
}

// Clear removes every entry.
func (c *TTSCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired or not.
func (c *TTSCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
