// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/trainhub/pkg/errutil"
)

// DefaultSweepInterval is how often the Sweeper removes expired sessions.
const DefaultSweepInterval = time.Hour

// Sweeper periodically deletes expired sessions. Deleting is idempotent, so
// several sweepers may run against one store without coordination.
type Sweeper struct {
	sessions SessionStore
	interval time.Duration
	logger   *slog.Logger
	metrics  Metrics
	now      func() time.Time
}

// NewSweeper creates a Sweeper. The interval must be positive; a caller that
// wants sweeping disabled does not create a Sweeper at all.
func NewSweeper(sessions SessionStore, interval time.Duration, logger *slog.Logger, metrics Metrics) (*Sweeper, error) {
	if sessions == nil {
		return nil, oops.Code("SWEEPER_INVALID").Errorf("session store is required")
	}
	if interval <= 0 {
		return nil, oops.Code("SWEEPER_INVALID").With("interval", interval).Errorf("sweep interval must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Sweeper{
		sessions: sessions,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}, nil
}

// SweepOnce deletes every session expired as of now.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpiredBefore(ctx, s.now())
	if err != nil {
		return 0, oops.Code("SESSION_SWEEP_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	s.metrics.SessionsSwept(n)
	if n > 0 {
		s.logger.InfoContext(ctx, "expired sessions swept", "count", n)
	}
	return n, nil
}

// Run sweeps on every tick until ctx is cancelled. Failed sweeps are logged and
// retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "session sweeper started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "session sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				errutil.LogError(s.logger, "session sweep failed", err)
			}
		}
	}
}
