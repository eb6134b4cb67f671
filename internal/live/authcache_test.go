package live

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aslahtp/menti-clone/internal/domain"
)

func TestCredentialCache(t *testing.T) {
	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	c := newCredentialCache(5 * time.Minute)
	c.now = func() time.Time { return clock }

	ident := domain.Identity{UserID: 10, Name: "Uma", Role: domain.RoleUser}
	c.store("tok", ident)

	t.Run("hit within ttl", func(t *testing.T) {
		clock = clock.Add(4 * time.Minute)

		got, ok := c.lookup("tok")
		assert.True(t, ok)
		assert.Equal(t, ident, got)
	})

	t.Run("stale entry is a miss and is dropped", func(t *testing.T) {
		clock = clock.Add(2 * time.Minute)

		_, ok := c.lookup("tok")
		assert.False(t, ok)

		// Dropped, not just hidden: a fresh clock does not revive it.
		clock = clock.Add(-2 * time.Minute)
		_, ok = c.lookup("tok")
		assert.False(t, ok)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, ok := c.lookup("other")
		assert.False(t, ok)
	})
}

func TestCredentialCacheSweep(t *testing.T) {
	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	c := newCredentialCache(5 * time.Minute)
	c.now = func() time.Time { return clock }

	c.store("old", domain.Identity{UserID: 1})
	clock = clock.Add(4 * time.Minute)
	c.store("fresh", domain.Identity{UserID: 2})

	clock = clock.Add(90 * time.Second)
	c.sweep()

	_, ok := c.lookup("old")
	assert.False(t, ok)
	_, ok = c.lookup("fresh")
	assert.True(t, ok)
}
