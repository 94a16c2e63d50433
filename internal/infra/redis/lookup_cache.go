package redis

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"season-predictions/internal/app"
)

// Lookup tables are cached as one hash per catalog:
//
//	HSET lookup:players {playerID} {name}
//	HSET lookup:teams   {teamID}   {name}
const (
	PlayersKey = "lookup:players"
	TeamsKey   = "lookup:teams"
)

// LookupCache shares the name tables between replicas through Redis and falls
// back to the catalog loader on a miss.
type LookupCache struct {
	client *redis.Client
	loader app.CatalogLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

var _ app.LookupCache = (*LookupCache)(nil)

func NewLookupCache(client *redis.Client, loader app.CatalogLoader, ttl time.Duration) *LookupCache {
	return &LookupCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *LookupCache) Tables(ctx context.Context) (app.LookupTables, error) {
	if tables, ok := c.cached(ctx); ok {
		return tables, nil
	}

	result, err, _ := c.sf.Do("tables", func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if tables, ok := c.cached(ctx); ok {
			return tables, nil
		}
		return c.load(ctx)
	})
	if err != nil {
		return app.LookupTables{}, err
	}
	return result.(app.LookupTables), nil
}

// Refresh deletes both hashes and rebuilds them from the loader.
func (c *LookupCache) Refresh(ctx context.Context) (app.LookupTables, error) {
	if err := c.client.Del(ctx, PlayersKey, TeamsKey).Err(); err != nil {
		return app.LookupTables{}, err
	}
	c.sf.Forget("tables")
	result, err, _ := c.sf.Do("tables", func() (interface{}, error) {
		return c.load(ctx)
	})
	if err != nil {
		return app.LookupTables{}, err
	}
	return result.(app.LookupTables), nil
}

func (c *LookupCache) cached(ctx context.Context) (app.LookupTables, bool) {
	players, err := c.client.HGetAll(ctx, PlayersKey).Result()
	if err != nil || len(players) == 0 {
		return app.LookupTables{}, false
	}
	teams, err := c.client.HGetAll(ctx, TeamsKey).Result()
	if err != nil || len(teams) == 0 {
		return app.LookupTables{}, false
	}
	return app.LookupTables{Players: parseNames(players), Teams: parseNames(teams)}, true
}

func (c *LookupCache) load(ctx context.Context) (app.LookupTables, error) {
	tables, err := app.BuildLookupTables(ctx, c.loader)
	if err != nil {
		return app.LookupTables{}, err
	}

	ttl := c.ttlWithJitter()
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, PlayersKey, TeamsKey)
	if len(tables.Players) > 0 {
		pipe.HSet(ctx, PlayersKey, formatNames(tables.Players))
	}
	if len(tables.Teams) > 0 {
		pipe.HSet(ctx, TeamsKey, formatNames(tables.Teams))
	}
	if ttl > 0 {
		pipe.Expire(ctx, PlayersKey, ttl)
		pipe.Expire(ctx, TeamsKey, ttl)
	}
	// best-effort: a failed write only costs another load
	_, _ = pipe.Exec(ctx)

	return tables, nil
}

func formatNames(names map[int64]string) map[string]interface{} {
	out := make(map[string]interface{}, len(names))
	for id, name := range names {
		out[strconv.FormatInt(id, 10)] = name
	}
	return out
}

func parseNames(fields map[string]string) map[int64]string {
	out := make(map[int64]string, len(fields))
	for field, name := range fields {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		out[id] = name
	}
	return out
}

func (c *LookupCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
