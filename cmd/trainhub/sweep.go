// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/trainhub/internal/auth"
	"github.com/holomush/trainhub/internal/config"
	"github.com/holomush/trainhub/internal/logging"
	"github.com/holomush/trainhub/internal/store"
	"github.com/holomush/trainhub/pkg/errutil"
)

// Default timeout for the sweep command.
const defaultSweepTimeout = 30 * time.Second

// NewSweepCmd creates the sweep subcommand.
func NewSweepCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired sessions once",
		Long: `Delete every session whose expiry has passed and exit. The serve command
runs the same sweep periodically; this is for cron-driven deployments that
disable it with sessions.sweep_interval: 0.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			// Use cmd.Context() to respect SIGINT/SIGTERM signals
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return runSweep(ctx, cmd, cfg, store.Open)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", defaultSweepTimeout, "timeout for the sweep (e.g., 30s, 1m)")
	return cmd
}

// runSweep opens the backend, sweeps once and reports the count.
func runSweep(
	ctx context.Context,
	cmd *cobra.Command,
	cfg *config.Config,
	open func(context.Context, store.Config, *slog.Logger) (*store.Backend, error),
) error {
	logOpts := cfg.LoggingOptions(serviceName, version)
	logOpts.Writer = cmd.ErrOrStderr()
	logger := logging.New(logOpts)

	storeCfg, err := cfg.StoreConfig()
	if err != nil {
		return oops.With("operation", "resolve storage config").Wrap(err)
	}
	backend, err := open(ctx, storeCfg, logger)
	if err != nil {
		return oops.With("operation", "open storage").Wrap(err)
	}
	defer func() {
		if closeErr := backend.Close(); closeErr != nil {
			errutil.LogError(logger, "error closing storage", closeErr)
		}
	}()

	sweeper, err := auth.NewSweeper(backend.Sessions, auth.DefaultSweepInterval, logger, nil)
	if err != nil {
		return oops.With("operation", "create session sweeper").Wrap(err)
	}
	n, err := sweeper.SweepOnce(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Swept %d expired sessions\n", n)
	return nil
}
