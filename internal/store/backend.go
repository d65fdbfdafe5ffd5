// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/holomush/trainhub/internal/auth"
	authpg "github.com/holomush/trainhub/internal/auth/postgres"
	"github.com/holomush/trainhub/internal/auth/redisstore"
	authsqlite "github.com/holomush/trainhub/internal/auth/sqlite"
	trainingcatalog "github.com/holomush/trainhub/internal/catalog"
)

// Config selects and locates the storage backends.
type Config struct {
	Driver          Driver
	URL             string
	Sessions        SessionBackend
	RedisURL        string
	ConnectAttempts uint64
}

// Backend bundles the repositories for one configured storage stack.
type Backend struct {
	Users     auth.UserRepository
	Sessions  auth.SessionStore
	Trainings trainingcatalog.Repository

	pings  []func(context.Context) error
	closes []func() error
}

// Ping checks every underlying connection.
func (b *Backend) Ping(ctx context.Context) error {
	for _, ping := range b.pings {
		if err := ping(ctx); err != nil {
			return oops.Code("BACKEND_UNHEALTHY").Wrap(err)
		}
	}
	return nil
}

// Close releases every underlying connection, most recently opened first.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closes) - 1; i >= 0; i-- {
		if err := b.closes[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return oops.Code("BACKEND_CLOSE_FAILED").Wrap(errors.Join(errs...))
	}
	return nil
}

// Open connects the configured backends. Schema migrations are not applied here.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Sessions == "" {
		cfg.Sessions = SessionBackendDatabase
	}
	if !cfg.Sessions.Valid() {
		return nil, oops.Code("BACKEND_CONFIG_INVALID").With("sessions", cfg.Sessions).Errorf("unknown session backend")
	}

	b := &Backend{}
	switch cfg.Driver {
	case DriverPostgres:
		pool, err := OpenPostgres(ctx, cfg.URL, cfg.ConnectAttempts, logger)
		if err != nil {
			return nil, err
		}
		b.pings = append(b.pings, pool.Ping)
		b.closes = append(b.closes, func() error { pool.Close(); return nil })
		b.Users = authpg.NewUserRepository(pool)
		b.Sessions = authpg.NewSessionStore(pool)
		b.Trainings = trainingcatalog.NewPostgresRepository(pool)
	case DriverSQLite:
		db, err := OpenSQLite(ctx, cfg.URL, logger)
		if err != nil {
			return nil, err
		}
		b.pings = append(b.pings, db.PingContext)
		b.closes = append(b.closes, db.Close)
		b.Users = authsqlite.NewUserRepository(db)
		b.Sessions = authsqlite.NewSessionStore(db)
		b.Trainings = trainingcatalog.NewSQLiteRepository(db)
	default:
		return nil, oops.Code("BACKEND_CONFIG_INVALID").With("driver", cfg.Driver).Errorf("unknown database driver")
	}

	if cfg.Sessions == SessionBackendRedis {
		client, err := OpenRedis(ctx, cfg.RedisURL, cfg.ConnectAttempts, logger)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.pings = append(b.pings, func(ctx context.Context) error { return client.Ping(ctx).Err() })
		b.closes = append(b.closes, client.Close)
		b.Sessions = redisstore.NewSessionStore(client)
	}

	logger.InfoContext(ctx, "storage backend ready",
		"driver", cfg.Driver,
		"sessions", cfg.Sessions,
	)
	return b, nil
}

// OpenRedis connects to redisURL and waits for it to answer a ping.
func OpenRedis(ctx context.Context, redisURL string, attempts uint64, logger *slog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, oops.Code("REDIS_CONFIG_INVALID").With("operation", "parse redis url").Wrap(err)
	}
	client := redis.NewClient(opt)

	ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
	if err := pingWithRetry(ctx, logger, "redis", attempts, ping); err != nil {
		_ = client.Close()
		return nil, oops.Code("REDIS_CONNECT_FAILED").With("addr", opt.Addr).Wrap(err)
	}
	return client, nil
}
