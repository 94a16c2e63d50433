package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"season-predictions/internal/domain"
)

type countingLoader struct {
	StaticCatalogLoader
	mu    sync.Mutex
	calls int
}

func (l *countingLoader) LoadPlayers(ctx context.Context) ([]domain.Player, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return l.StaticCatalogLoader.LoadPlayers(ctx)
}

func (l *countingLoader) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func TestLookupCacheCaches(t *testing.T) {
	loader := &countingLoader{StaticCatalogLoader: StaticCatalogLoader{
		Players: []domain.Player{{ID: 7, Name: "Nikola Jokic"}},
		Teams:   []domain.Team{{ID: 1, Name: "Lakers"}},
	}}
	cache := NewLookupCache(loader, time.Minute)

	tables, err := cache.Tables(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Nikola Jokic", tables.Players[7])
	require.Equal(t, "Lakers", tables.Teams[1])

	_, err = cache.Tables(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, loader.Calls(), "second read should hit the cache")
}

func TestLookupCacheExpires(t *testing.T) {
	loader := &countingLoader{}
	cache := NewLookupCache(loader, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.SetClock(func() time.Time { return now })

	_, err := cache.Tables(context.Background())
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = cache.Tables(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, loader.Calls())
}

func TestLookupCacheRefreshPicksUpNewNames(t *testing.T) {
	loader := &countingLoader{StaticCatalogLoader: StaticCatalogLoader{
		Players: []domain.Player{{ID: 7, Name: "Nikola Jokic"}},
	}}
	cache := NewLookupCache(loader, time.Hour)

	_, err := cache.Tables(context.Background())
	require.NoError(t, err)

	loader.Players = append(loader.Players, domain.Player{ID: 8, Name: "Luka Doncic"})
	tables, err := cache.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Luka Doncic", tables.Players[8])
	require.Equal(t, 2, loader.Calls())
}

func TestLeaderboardCacheInvalidate(t *testing.T) {
	cache := NewLeaderboardCache(time.Minute)
	ctx := context.Background()
	lb := domain.Leaderboard{Season: domain.SeasonInfo{Slug: "2024-25"}}

	cache.Put(ctx, "2024-25", "main", lb)
	cache.Put(ctx, "2024-25", "tournament", lb)

	got, ok := cache.Get(ctx, "2024-25", "main")
	require.True(t, ok)
	require.Equal(t, "2024-25", got.Season.Slug)

	cache.Invalidate(ctx, "2024-25")
	_, ok = cache.Get(ctx, "2024-25", "main")
	require.False(t, ok)
	_, ok = cache.Get(ctx, "2024-25", "tournament")
	require.False(t, ok)
}

func TestLeaderboardCacheExpires(t *testing.T) {
	cache := NewLeaderboardCache(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.SetClock(func() time.Time { return now })

	cache.Put(context.Background(), "2024-25", "main", domain.Leaderboard{})
	now = now.Add(time.Minute)
	_, ok := cache.Get(context.Background(), "2024-25", "main")
	require.False(t, ok)
}
