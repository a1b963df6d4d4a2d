package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/aliceyli/job-board-finder/internal/audit"
	"github.com/aliceyli/job-board-finder/internal/board"
	"github.com/aliceyli/job-board-finder/internal/board/ashby"
	"github.com/aliceyli/job-board-finder/internal/board/greenhouse"
	"github.com/aliceyli/job-board-finder/internal/board/lever"
	"github.com/aliceyli/job-board-finder/internal/config"
	"github.com/aliceyli/job-board-finder/internal/db"
	"github.com/aliceyli/job-board-finder/internal/events"
	"github.com/aliceyli/job-board-finder/internal/ingest"
	"github.com/aliceyli/job-board-finder/internal/lock"
	"github.com/aliceyli/job-board-finder/internal/resolver"
	"github.com/aliceyli/job-board-finder/internal/scraper"
	"github.com/aliceyli/job-board-finder/internal/store"
)

type deps struct {
	store  store.Store
	rdb    *redis.Client
	worker *scraper.Worker
}

func (d *deps) close() {
	if d.rdb != nil {
		_ = d.rdb.Close()
	}
	if err := d.store.Close(); err != nil {
		slog.Warn("store close failed", "err", err)
	}
}

// buildDeps connects the store (and Redis when configured) and wires the
// worker shared by every command.
func buildDeps(ctx context.Context, cfg *config.Config) (*deps, error) {
	d := &deps{}

	// ── Store ────────────────────────────────────────────────────────────────
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		slog.Info("connecting to PostgreSQL")
		pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		d.store = store.NewPostgres(pool)
	case config.DriverSQLite:
		slog.Info("opening SQLite", "path", cfg.SQLitePath)
		s, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		d.store = s
	}

	// ── Redis (optional) ─────────────────────────────────────────────────────
	var (
		locker    lock.Locker = lock.NewLocal()
		publisher events.Publisher = events.Noop{}
	)
	if cfg.RedisURL != "" {
		slog.Info("connecting to Redis")
		rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			_ = d.store.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		d.rdb = rdb
		locker = lock.NewRedis(rdb, cfg.LockTTL)
		publisher = events.NewRedis(rdb)
	}

	// ── Providers, in resolution order ───────────────────────────────────────
	client := board.NewHTTPClient(cfg.HTTPTimeout)
	engine := resolver.New(
		greenhouse.New(greenhouse.WithClient(client)),
		ashby.New(
			ashby.WithClient(client),
			ashby.WithThrottle(board.FixedInterval(cfg.AshbyDelay)),
		),
		lever.New(lever.WithClient(client)),
	)

	d.worker = scraper.NewWorker(
		engine,
		ingest.New(d.store),
		audit.New(d.store, nil),
		locker,
		publisher,
		cfg.ResolveLimit,
	)
	return d, nil
}
