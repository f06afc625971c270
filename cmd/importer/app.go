package main

import (
	"context"
	"log/slog"

	"github.com/JonMunkholm/studentimport/internal/config"
	"github.com/JonMunkholm/studentimport/internal/core"
	"github.com/JonMunkholm/studentimport/internal/progress"
	"github.com/JonMunkholm/studentimport/internal/store"
	"github.com/redis/go-redis/v9"
)

// app wires the pipeline from configuration.
type app struct {
	cfg        *config.Config
	db         *store.DB
	rdb        *redis.Client
	progress   progress.Store
	runs       core.RunRepository
	dispatcher *core.Dispatcher
	closers    []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (a *app, err error) {
	a = &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.db, err = store.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { a.db.Close(); return nil })

	if cfg.UsesRedis() {
		a.rdb, err = progress.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.rdb.Close)
		a.progress = progress.NewRedisStore(a.rdb, cfg.Progress.TTL)
		slog.Info("progress store ready", "backend", "redis", "addr", cfg.Redis.Addr)
	} else {
		mem := progress.NewMemoryStore(cfg.Progress.TTL)
		a.closers = append(a.closers, mem.Close)
		a.progress = mem
		slog.Info("progress store ready", "backend", "memory")
	}

	a.runs = core.NewPostgresRunRepository(a.db)

	resolver := core.NewResolver(
		core.WithEvaluationPolicy(core.ParseEvaluationPolicy(cfg.Import.EvaluationPolicy)),
		core.WithPasswordHasher(core.BcryptHasher{Cost: cfg.Import.BcryptCost}),
	)
	importer := core.NewImporter(core.ImporterDeps{
		Tx:       core.NewPostgresTxRunner(a.db),
		Runs:     a.runs,
		Progress: a.progress,
		Resolver: resolver,
	})
	a.dispatcher = core.NewDispatcher(
		importer,
		core.NewRunLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime),
		a.runs,
		a.progress,
		core.DispatcherConfig{
			MaxAttempts:    cfg.Import.MaxAttempts,
			AttemptTimeout: cfg.Import.AttemptTimeout,
			RetryDelay:     cfg.Import.RetryDelay,
		},
	)
	return a, nil
}

// Close releases connections in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
