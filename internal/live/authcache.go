package live

import (
	"sync"
	"time"

	"github.com/aslahtp/menti-clone/internal/domain"
)

// credentialCache remembers recently verified tokens so repeated messages on
// the same connection skip full verification. Staleness only ever costs one
// extra verification, never a wrong authorization.
type credentialCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	identity   domain.Identity
	verifiedAt time.Time
}

func newCredentialCache(ttl time.Duration) *credentialCache {
	return &credentialCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// lookup returns the cached identity for token. A stale entry is dropped and
// reported as a miss so the caller re-verifies.
func (c *credentialCache) lookup(token string) (domain.Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[token]
	if !ok {
		return domain.Identity{}, false
	}
	if c.now().Sub(e.verifiedAt) >= c.ttl {
		delete(c.entries, token)
		return domain.Identity{}, false
	}
	return e.identity, true
}

func (c *credentialCache) store(token string, id domain.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[token] = cacheEntry{identity: id, verifiedAt: c.now()}
}

// sweep drops every expired entry.
func (c *credentialCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for token, e := range c.entries {
		if now.Sub(e.verifiedAt) >= c.ttl {
			delete(c.entries, token)
		}
	}
}

func (c *credentialCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cacheEntry)
}
