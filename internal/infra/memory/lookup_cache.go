package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"season-predictions/internal/app"
	"season-predictions/internal/domain"
)

const lookupKey = "lookup"

// LookupCache keeps the player and team name tables in process memory with a TTL.
type LookupCache struct {
	loader app.CatalogLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu        sync.RWMutex
	tables    app.LookupTables
	loaded    bool
	expiresAt time.Time
}

var _ app.LookupCache = (*LookupCache)(nil)

func NewLookupCache(loader app.CatalogLoader, ttl time.Duration) *LookupCache {
	return &LookupCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetClock is test-only for deterministic expiry.
func (c *LookupCache) SetClock(now func() time.Time) {
	c.clock = now
}

func (c *LookupCache) Tables(ctx context.Context) (app.LookupTables, error) {
	if t, ok := c.fresh(); ok {
		return t, nil
	}

	result, err, _ := c.sf.Do(lookupKey, func() (interface{}, error) {
		if t, ok := c.fresh(); ok {
			return t, nil
		}
		return c.load(ctx)
	})
	if err != nil {
		return app.LookupTables{}, err
	}
	return result.(app.LookupTables), nil
}

// Refresh drops the cached tables and rebuilds them from the loader.
func (c *LookupCache) Refresh(ctx context.Context) (app.LookupTables, error) {
	c.mu.Lock()
	c.loaded = false
	c.tables = app.LookupTables{}
	c.mu.Unlock()

	c.sf.Forget(lookupKey)
	result, err, _ := c.sf.Do(lookupKey, func() (interface{}, error) {
		return c.load(ctx)
	})
	if err != nil {
		return app.LookupTables{}, err
	}
	return result.(app.LookupTables), nil
}

func (c *LookupCache) fresh() (app.LookupTables, bool) {
	now := c.clock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.loaded && (c.ttl <= 0 || c.expiresAt.After(now)) {
		return c.tables, true
	}
	return app.LookupTables{}, false
}

func (c *LookupCache) load(ctx context.Context) (app.LookupTables, error) {
	now := c.clock()
	tables, err := app.BuildLookupTables(ctx, c.loader)
	if err != nil {
		return app.LookupTables{}, err
	}

	expiresAt := now.Add(c.ttlWithJitter())
	c.mu.Lock()
	c.tables = tables
	c.loaded = true
	c.expiresAt = expiresAt
	c.mu.Unlock()
	return tables, nil
}

func (c *LookupCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter so replicas do not expire together
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticCatalogLoader serves a fixed catalog (useful for tests/demos).
type StaticCatalogLoader struct {
	Players []domain.Player
	Teams   []domain.Team
}

func (l *StaticCatalogLoader) LoadPlayers(context.Context) ([]domain.Player, error) {
	return l.Players, nil
}

func (l *StaticCatalogLoader) LoadTeams(context.Context) ([]domain.Team, error) {
	return l.Teams, nil
}
