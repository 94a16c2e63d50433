package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"season-predictions/internal/app"
	"season-predictions/internal/domain"
)

// LeaderboardCache stores built leaderboards as JSON under
// leaderboard:{season}:{view}. Redis failures degrade to a cache miss.
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

var _ app.LeaderboardCache = (*LeaderboardCache)(nil)

func NewLeaderboardCache(client *redis.Client, ttl time.Duration, log zerolog.Logger) *LeaderboardCache {
	return &LeaderboardCache{client: client, ttl: ttl, log: log}
}

func (c *LeaderboardCache) Get(ctx context.Context, seasonSlug, view string) (domain.Leaderboard, bool) {
	raw, err := c.client.Get(ctx, c.key(seasonSlug, view)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn().Err(err).Str("season", seasonSlug).Str("view", view).Msg("leaderboard cache read failed")
		}
		return domain.Leaderboard{}, false
	}
	var lb domain.Leaderboard
	if err := json.Unmarshal(raw, &lb); err != nil {
		c.log.Warn().Err(err).Str("season", seasonSlug).Str("view", view).Msg("discarding corrupt cached leaderboard")
		return domain.Leaderboard{}, false
	}
	return lb, true
}

func (c *LeaderboardCache) Put(ctx context.Context, seasonSlug, view string, lb domain.Leaderboard) {
	raw, err := json.Marshal(lb)
	if err != nil {
		c.log.Warn().Err(err).Str("season", seasonSlug).Msg("encode leaderboard for cache")
		return
	}
	if err := c.client.Set(ctx, c.key(seasonSlug, view), raw, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("season", seasonSlug).Str("view", view).Msg("leaderboard cache write failed")
	}
}

// Invalidate deletes every view of the season.
func (c *LeaderboardCache) Invalidate(ctx context.Context, seasonSlug string) {
	err := c.client.Del(ctx, c.key(seasonSlug, app.ViewMain), c.key(seasonSlug, app.ViewTournament)).Err()
	if err != nil {
		c.log.Warn().Err(err).Str("season", seasonSlug).Msg("leaderboard cache invalidate failed")
	}
}

func (c *LeaderboardCache) key(seasonSlug, view string) string {
	return "leaderboard:" + seasonSlug + ":" + view
}
