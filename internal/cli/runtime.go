package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"

	"season-predictions/internal/app"
	"season-predictions/internal/config"
	"season-predictions/internal/infra/memory"
	"season-predictions/internal/infra/postgres"
	infraredis "season-predictions/internal/infra/redis"
	"season-predictions/internal/metrics"
)

// runtime holds the wired services shared by every subcommand.
type runtime struct {
	cfg      config.Config
	log      zerolog.Logger
	registry *prometheus.Registry
	feed     *app.Feed
	grading  *app.GradingService
	board    *app.LeaderboardService
	admin    *app.AdminService

	closers []func()
}

// newRuntime connects Postgres and Redis when configured. Without Postgres the
// services run on an empty in-memory store, which is only useful for demos.
func newRuntime(ctx context.Context, path string) (*runtime, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	log := newLogger(cfg.Log.Level, pretty || cfg.Log.Pretty)

	rt := &runtime{cfg: cfg, log: log, registry: prometheus.NewRegistry(), feed: app.NewFeed()}
	rt.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(rt.registry)

	var (
		store   app.Store
		catalog app.CatalogLoader
	)
	if cfg.Postgres.URL != "" {
		db := postgres.Open(cfg.Postgres.URL)
		rt.closers = append(rt.closers, func() { _ = db.Close() })
		if err := db.PingContext(ctx); err != nil {
			rt.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("connect catalog pool: %w", err)
		}
		rt.closers = append(rt.closers, pool.Close)
		store = postgres.NewStore(db, cfg.Grading.BatchSize)
		catalog = postgres.NewCatalogLoader(pool)
	} else {
		log.Warn().Msg("postgres url not configured, using in-memory store")
		mem := memory.NewStore()
		store, catalog = mem, mem
	}

	lookupTTL := config.TTLDuration(cfg.Lookup.TTL, config.DefaultLookupTTL)
	boardTTL := config.TTLDuration(cfg.Leaderboard.TTL, config.DefaultLeaderboardTTL)
	var (
		lookups app.LookupCache
		cache   app.LeaderboardCache
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rt.closers = append(rt.closers, func() { _ = client.Close() })
		lookups = infraredis.NewLookupCache(client, catalog, lookupTTL)
		cache = infraredis.NewLeaderboardCache(client, boardTTL, log)
	} else {
		lookups = memory.NewLookupCache(catalog, lookupTTL)
		cache = memory.NewLeaderboardCache(boardTTL)
	}

	rt.grading = app.NewGradingService(store, catalog, log, m)
	rt.grading.SetBatchSize(cfg.Grading.BatchSize)
	rt.board = app.NewLeaderboardService(store, lookups, cache, rt.feed, log)
	rt.grading.OnCommitted(rt.board.Republish)
	rt.admin = app.NewAdminService(store, lookups, log, m)
	return rt, nil
}

// Close releases connections in reverse order of opening.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// migrateDB applies pending migrations against an already opened database.
func migrateDB(ctx context.Context, db *bun.DB, log zerolog.Logger) error {
	group, err := postgres.Migrate(ctx, db)
	if err != nil {
		return err
	}
	if group.IsZero() {
		log.Info().Msg("no new migrations")
		return nil
	}
	log.Info().Str("group", group.String()).Msg("migrations applied")
	return nil
}

func timeoutContext(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}
