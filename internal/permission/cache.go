// Package permission resolves and caches the permission set of a principal.
// Resolution goes through a Source; the cache serves fresh entries by TTL and
// is explicitly purged on role mutation so security-relevant changes do not
// wait out the TTL.
package permission

import (
	"context"
	"slices"
	"sync"
	"time"

	"staff-auth-core/internal/clock"
)

// Source resolves the permission set of a principal from the authorization
// backend. Implementations return the full set on every call; caching is the
// caller's concern.
type Source interface {
	Permissions(ctx context.Context, principalID string) ([]string, error)
}

type entry struct {
	perms    []string
	cachedAt time.Time
}

// Cache is a TTL cache over a Source, keyed by principal id. It is owned by
// whoever constructs it; there is no shared global state.
type Cache struct {
	mu      sync.Mutex
	source  Source
	clk     clock.Clock
	ttl     time.Duration
	entries map[string]entry
}

// NewCache returns a Cache serving entries for at most ttl before refetching.
func NewCache(source Source, clk clock.Clock, ttl time.Duration) *Cache {
	if clk == nil {
		clk = clock.System{}
	}
	return &Cache{
		source:  source,
		clk:     clk,
		ttl:     ttl,
		entries: map[string]entry{},
	}
}

// Get returns the principal's permission set, from cache when fresh. A fetch
// failure is returned without touching any cached value, so a stale-but-valid
// entry is never replaced by an error.
func (c *Cache) Get(ctx context.Context, principalID string) ([]string, error) {
	now := c.clk.Now()

	c.mu.Lock()
	if e, ok := c.entries[principalID]; ok && now.Sub(e.cachedAt) < c.ttl {
		perms := slices.Clone(e.perms)
		c.mu.Unlock()
		return perms, nil
	}
	c.mu.Unlock()

	perms, err := c.source.Permissions(ctx, principalID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[principalID] = entry{perms: slices.Clone(perms), cachedAt: now}
	c.mu.Unlock()
	return perms, nil
}

// Has reports whether the principal's resolved set contains the permission.
func (c *Cache) Has(ctx context.Context, principalID, perm string) (bool, error) {
	perms, err := c.Get(ctx, principalID)
	if err != nil {
		return false, err
	}
	return slices.Contains(perms, perm), nil
}

// Invalidate drops the cached entry for one principal. The next Get fetches.
func (c *Cache) Invalidate(principalID string) {
	c.mu.Lock()
	delete(c.entries, principalID)
	c.mu.Unlock()
}

// InvalidateAll drops every cached entry.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = map[string]entry{}
	c.mu.Unlock()
}
