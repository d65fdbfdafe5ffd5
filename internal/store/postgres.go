// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store opens the configured storage backends and manages their schema.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// DefaultConnectAttempts is how many times a backend ping is retried at startup.
const DefaultConnectAttempts = 5

// connectBackoff is the initial delay between ping attempts. It doubles on each retry.
var connectBackoff = 200 * time.Millisecond

// pingWithRetry pings until it succeeds, attempts run out, or ctx ends.
func pingWithRetry(ctx context.Context, logger *slog.Logger, backend string, attempts uint64, ping func(context.Context) error) error {
	if attempts == 0 {
		attempts = DefaultConnectAttempts
	}
	b := retry.WithMaxRetries(attempts-1, retry.NewExponential(connectBackoff))

	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := ping(ctx); err != nil {
			logger.WarnContext(ctx, "backend not reachable, retrying",
				"backend", backend,
				"attempt", attempt,
				"error", err.Error(),
			)
			return retry.RetryableError(err)
		}
		return nil
	})
}

// OpenPostgres creates a pgx pool for databaseURL and waits for it to answer a ping.
func OpenPostgres(ctx context.Context, databaseURL string, attempts uint64, logger *slog.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").
			With("operation", "parse database url").
			Wrap(err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "create pool").
			Wrap(err)
	}

	if err := pingWithRetry(ctx, logger, "postgres", attempts, pool.Ping); err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("host", cfg.ConnConfig.Host).
			Wrap(err)
	}
	return pool, nil
}
