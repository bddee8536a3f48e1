package profile

import (
	"sync"

	"github.com/placelet/convo/internal/models"
)

// Cache holds resolved display identities. Entries never expire by time;
// they are replaced by explicit re-resolution only. The cache is an
// injectable object so its lifecycle follows the mounted conversation
// view, not the process.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]models.ProfileSummary
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]models.ProfileSummary)}
}

// Get returns the cached summary for a counterpart.
func (c *Cache) Get(counterpartID string) (models.ProfileSummary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.entries[counterpartID]
	return p, ok
}

// Put stores or replaces a summary.
func (c *Cache) Put(p models.ProfileSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[p.CounterpartID] = p
}

// PutIfAbsent stores the summary unless one already exists. It returns
// the entry now in the cache and whether this call inserted it; the
// resolver uses it to claim a lookup so concurrent resolves of the same
// counterpart do not issue duplicate directory calls.
func (c *Cache) PutIfAbsent(p models.ProfileSummary) (models.ProfileSummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.entries[p.CounterpartID]; ok {
		return cur, false
	}
	c.entries[p.CounterpartID] = p
	return p, true
}

// Invalidate drops a counterpart's entry.
func (c *Cache) Invalidate(counterpartID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, counterpartID)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
