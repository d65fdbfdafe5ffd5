// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	cryptotls "crypto/tls"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/trainhub/internal/auth"
	"github.com/holomush/trainhub/internal/config"
	"github.com/holomush/trainhub/internal/logging"
	"github.com/holomush/trainhub/internal/store"
	"github.com/holomush/trainhub/internal/web"
	"github.com/holomush/trainhub/pkg/errutil"
)

// stopTimeout bounds shutdown of the observability server.
const stopTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the web server for signup, login, logout and the training catalog,
together with the metrics/health server and the expired-session sweeper.
Stops gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}
}

// runServeWithDeps runs the server until ctx is cancelled or a signal arrives.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()

	logOpts := cfg.LoggingOptions(serviceName, version)
	logOpts.Writer = cmd.ErrOrStderr()
	logger := logging.SetDefault(logOpts)

	logger.InfoContext(ctx, "starting trainhub",
		"env", cfg.Env,
		"database_driver", cfg.Database.Driver,
		"session_store", cfg.Sessions.Store,
	)

	storeCfg, err := cfg.StoreConfig()
	if err != nil {
		return oops.With("operation", "resolve storage config").Wrap(err)
	}
	listenerTLS, err := cfg.ListenerTLS(time.Now())
	if err != nil {
		return oops.With("operation", "load TLS certificate").Wrap(err)
	}

	if cfg.Database.AutoMigrate {
		if err := autoMigrate(deps, storeCfg, logger); err != nil {
			return err
		}
	}

	backend, err := deps.BackendOpener(ctx, storeCfg, logger)
	if err != nil {
		return oops.With("operation", "open storage").Wrap(err)
	}
	defer func() {
		if closeErr := backend.Close(); closeErr != nil {
			errutil.LogError(logger, "error closing storage", closeErr)
		}
	}()

	obsServer := deps.ObservabilityServerFactory(cfg.Metrics.Addr, backend.Ping, logger)
	metrics := obsServer.Metrics()

	hasher, err := auth.NewScryptHasherWithParams(cfg.ScryptParams())
	if err != nil {
		return oops.With("operation", "create password hasher").Wrap(err)
	}
	manager, err := auth.NewSessionManager(backend.Sessions, backend.Users, cfg.SessionManagerConfig(),
		auth.WithManagerLogger(logger),
		auth.WithManagerMetrics(metrics),
	)
	if err != nil {
		return oops.With("operation", "create session manager").Wrap(err)
	}
	svc, err := auth.NewAuthServiceWithLogger(backend.Users, hasher, manager, logger)
	if err != nil {
		return oops.With("operation", "create auth service").Wrap(err)
	}
	webServer, err := web.NewServer(web.Deps{
		Auth:        svc,
		Trainings:   backend.Trainings,
		Logger:      logger,
		Requests:    metrics,
		Production:  cfg.IsProduction(),
		CORSOrigins: cfg.HTTP.CORSOrigins,
	})
	if err != nil {
		return oops.With("operation", "create web server").Wrap(err)
	}

	// Background goroutines are joined after ctx is cancelled and before storage closes.
	var background sync.WaitGroup
	defer background.Wait()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Sessions.SweepInterval > 0 {
		sweeper, err := auth.NewSweeper(backend.Sessions, cfg.Sessions.SweepInterval, logger, metrics)
		if err != nil {
			return oops.With("operation", "create session sweeper").Wrap(err)
		}
		background.Add(1)
		go func() {
			defer background.Done()
			sweeper.Run(ctx)
		}()
	}

	if cfg.Metrics.Addr != "" {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
			defer shutdownCancel()
			if stopErr := obsServer.Stop(shutdownCtx); stopErr != nil {
				errutil.LogError(logger, "error stopping observability server", stopErr)
			}
		}()
		background.Add(1)
		go func() {
			defer background.Done()
			monitorServerErrors(ctx, cancel, obsErrChan, "observability", logger)
		}()
	}

	listener, err := deps.ListenerFactory("tcp", cfg.HTTP.Addr)
	if err != nil {
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}

	scheme := "http"
	if listenerTLS != nil {
		listener = cryptotls.NewListener(listener, listenerTLS)
		scheme = "https"
	}

	cmd.Printf("trainhub listening on %s://%s\n", scheme, listener.Addr())
	if err := webServer.Serve(ctx, listener, cfg.HTTP.ShutdownTimeout); err != nil {
		return err
	}
	logger.Info("shutting down")
	return nil
}

// autoMigrate applies pending migrations before the backend is opened.
func autoMigrate(deps *ServeDeps, cfg store.Config, logger *slog.Logger) error {
	migrator, err := deps.MigratorFactory(cfg.Driver, cfg.URL)
	if err != nil {
		return oops.With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			errutil.LogError(logger, "error closing migrator", closeErr)
		}
	}()

	if err := migrator.Up(); err != nil {
		return oops.With("operation", "auto-migrate").Wrap(err)
	}
	logger.Info("database migrations applied", "driver", cfg.Driver)
	return nil
}

// monitorServerErrors cancels the process context when a background server fails.
// It returns when an error arrives, the channel closes, or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
