// Package bootstrap assembles the directory service from configuration. The
// admin server and vmailctl share it.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"vmail/backend/internal/config"
	"vmail/backend/internal/credential"
	"vmail/backend/internal/health"
	"vmail/backend/internal/monitoring"
	"vmail/backend/internal/ratelimit"
	"vmail/backend/internal/service"
	"vmail/backend/internal/storage"
	"vmail/backend/internal/storage/hybrid"
	"vmail/backend/internal/storage/memory"
	"vmail/backend/internal/storage/redis"
	sqlstore "vmail/backend/internal/storage/sql"
)

// OpenStore opens the configured store. An empty database driver selects the
// in-memory store. With a Redis address the relational store is wrapped so
// attempt counters live in Redis.
func OpenStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	if cfg.Database.Driver == "" {
		log.Info("using memory storage (development mode)")
		return memory.NewStore(), nil
	}

	db, err := OpenSQLStore(cfg, log)
	if err != nil {
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		log.Info("database schema migrated")
	}

	if cfg.Redis.Address == "" {
		return db, nil
	}

	counters, err := redis.New(cfg.Redis, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	return hybrid.NewStore(db, counters), nil
}

// OpenSQLStore opens the relational store without touching the schema.
func OpenSQLStore(cfg *config.Config, log *zap.Logger) (*sqlstore.Store, error) {
	db, err := sqlstore.NewStore(
		cfg.Database.Driver,
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database storage: %w", err)
	}
	log.Info("using database storage", zap.String("driver", cfg.Database.Driver))
	return db, nil
}

// NewDirectory builds the directory service on store. Attempt counters use the
// store when it can count, otherwise a process-local counter.
func NewDirectory(cfg *config.Config, store storage.Store, metrics *monitoring.Metrics, log *zap.Logger) *service.DirectoryService {
	counters, ok := store.(storage.RateLimitRepository)
	if !ok {
		counters = memory.NewStore()
	}

	opts := []service.Option{
		service.WithLogger(log),
		service.WithLimiter(ratelimit.NewAttemptLimiter(counters, cfg.RateLimit.MaxAttempts, cfg.RateLimit.Window)),
	}
	if metrics != nil {
		opts = append(opts, service.WithMetrics(metrics))
	}

	engine := credential.NewEngine(credential.Config{SaltLength: cfg.Credential.SaltLength})
	return service.NewDirectoryService(store, engine, opts...)
}

// RedisPinger returns the Redis side of store for health checks, or nil.
func RedisPinger(store storage.Store) health.Pinger {
	if h, ok := store.(*hybrid.Store); ok {
		return h
	}
	return nil
}
