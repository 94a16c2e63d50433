package memory

import (
	"context"
	"sync"
	"time"

	"season-predictions/internal/app"
	"season-predictions/internal/domain"
)

// LeaderboardCache is an in-memory implementation of app.LeaderboardCache.
type LeaderboardCache struct {
	ttl   time.Duration
	clock func() time.Time

	mu      sync.RWMutex
	entries map[string]map[string]cachedLeaderboard
}

type cachedLeaderboard struct {
	lb        domain.Leaderboard
	expiresAt time.Time
}

var _ app.LeaderboardCache = (*LeaderboardCache)(nil)

func NewLeaderboardCache(ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		ttl:     ttl,
		clock:   time.Now,
		entries: make(map[string]map[string]cachedLeaderboard),
	}
}

// SetClock is test-only for deterministic expiry.
func (c *LeaderboardCache) SetClock(now func() time.Time) {
	c.clock = now
}

func (c *LeaderboardCache) Get(_ context.Context, seasonSlug, view string) (domain.Leaderboard, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[seasonSlug][view]
	if !ok || (c.ttl > 0 && !entry.expiresAt.After(c.clock())) {
		return domain.Leaderboard{}, false
	}
	return entry.lb, true
}

func (c *LeaderboardCache) Put(_ context.Context, seasonSlug, view string, lb domain.Leaderboard) {
	c.mu.Lock()
	defer c.mu.Unlock()
	views, ok := c.entries[seasonSlug]
	if !ok {
		views = make(map[string]cachedLeaderboard)
		c.entries[seasonSlug] = views
	}
	views[view] = cachedLeaderboard{lb: lb, expiresAt: c.clock().Add(c.ttl)}
}

// Invalidate drops every cached view of the season.
func (c *LeaderboardCache) Invalidate(_ context.Context, seasonSlug string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, seasonSlug)
}
