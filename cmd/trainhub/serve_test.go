// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"context"
	cryptotls "crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/trainhub/internal/auth/authtest"
	"github.com/holomush/trainhub/internal/catalog"
	"github.com/holomush/trainhub/internal/config"
	"github.com/holomush/trainhub/internal/observability"
	"github.com/holomush/trainhub/internal/store"
	"github.com/holomush/trainhub/internal/tls"
)

// mockMigrator implements AutoMigrator for testing.
type mockMigrator struct {
	upCalled    bool
	upError     error
	closeCalled bool
}

func (m *mockMigrator) Up() error {
	m.upCalled = true
	return m.upError
}

func (m *mockMigrator) Close() error {
	m.closeCalled = true
	return nil
}

// mockObservabilityServer implements ObservabilityServer for testing.
type mockObservabilityServer struct {
	startErr error
	metrics  *observability.Metrics
	stopped  bool
}

func (m *mockObservabilityServer) Start() (<-chan error, error) {
	if m.startErr != nil {
		return nil, m.startErr
	}
	return make(chan error), nil
}

func (m *mockObservabilityServer) Stop(context.Context) error {
	m.stopped = true
	return nil
}

func (m *mockObservabilityServer) Addr() string { return "127.0.0.1:0" }

func (m *mockObservabilityServer) Metrics() *observability.Metrics { return m.metrics }

type stubCatalog struct{}

func (stubCatalog) List(context.Context) ([]catalog.Training, error) {
	return []catalog.Training{{ID: 1, Title: "Yoga", Image: "/yoga.jpg", Description: "Stretch"}}, nil
}

func testServeConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Log.Level = "error"
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.HTTP.ShutdownTimeout = time.Second
	cfg.Metrics.Addr = ""
	cfg.Database.URL = filepath.Join(t.TempDir(), "trainhub.db")
	cfg.Hasher = config.HasherConfig{N: 16, R: 1, P: 1}
	return cfg
}

func memoryBackend() *store.Backend {
	return &store.Backend{
		Users:     authtest.NewMemoryUserRepository(),
		Sessions:  authtest.NewMemorySessionStore(),
		Trainings: stubCatalog{},
	}
}

func testCommand() (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{}
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	return cmd, buf
}

func TestServe_EndToEnd(t *testing.T) {
	cfg := testServeConfig(t)
	cfg.Metrics.Addr = "127.0.0.1:0"
	migrator := &mockMigrator{}
	addrCh := make(chan string, 1)

	deps := &ServeDeps{
		BackendOpener: func(context.Context, store.Config, *slog.Logger) (*store.Backend, error) {
			return memoryBackend(), nil
		},
		MigratorFactory: func(store.Driver, string) (AutoMigrator, error) {
			return migrator, nil
		},
		ListenerFactory: func(network, address string) (net.Listener, error) {
			l, err := net.Listen(network, address)
			if err == nil {
				addrCh <- l.Addr().String()
			}
			return l, err
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cmd, out := testCommand()
	done := make(chan error, 1)
	go func() {
		done <- runServeWithDeps(ctx, cfg, cmd, deps)
	}()

	var base string
	select {
	case addr := <-addrCh:
		base = "http://" + addr
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not bind a listener")
	}

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar:     jar,
		Timeout: 5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	require.Eventually(t, func() bool {
		resp, err := client.Get(base + "/")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := client.PostForm(base+"/signup", url.Values{"email": {"ada@example.com"}, "password": {"correct horse"}})
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/training", resp.Header.Get("Location"))

	resp, err = client.Get(base + "/training")
	require.NoError(t, err)
	var body struct {
		Email     string             `json:"email"`
		Trainings []catalog.Training `json:"trainings"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ada@example.com", body.Email)
	assert.Len(t, body.Trainings, 1)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}

	assert.True(t, migrator.upCalled, "auto-migrate runs by default")
	assert.True(t, migrator.closeCalled)
	assert.Contains(t, out.String(), "trainhub listening on")
}

func TestServe_SelfSignedTLS(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dataDir)
	cfg := testServeConfig(t)
	cfg.Database.AutoMigrate = false
	cfg.HTTP.TLS.Mode = tls.ModeSelfSigned
	addrCh := make(chan string, 1)

	deps := &ServeDeps{
		BackendOpener: func(context.Context, store.Config, *slog.Logger) (*store.Backend, error) {
			return memoryBackend(), nil
		},
		ListenerFactory: func(network, address string) (net.Listener, error) {
			l, err := net.Listen(network, address)
			if err == nil {
				addrCh <- l.Addr().String()
			}
			return l, err
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cmd, out := testCommand()
	done := make(chan error, 1)
	go func() {
		done <- runServeWithDeps(ctx, cfg, cmd, deps)
	}()

	var addr string
	select {
	case addr = <-addrCh:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not bind a listener")
	}

	ca, err := tls.LoadCA(filepath.Join(dataDir, "trainhub", "certs"))
	require.NoError(t, err)
	roots := x509.NewCertPool()
	roots.AddCert(ca.Certificate)
	client := &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &cryptotls.Config{RootCAs: roots, MinVersion: cryptotls.VersionTLS12},
		},
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.PostForm("https://"+addr+"/signup", url.Values{"email": {"ada@example.com"}, "password": {"correct horse"}})
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].Secure, "https listeners mark the session cookie Secure")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
	assert.Contains(t, out.String(), "trainhub listening on https://")
}

func TestServe_AutoMigrateDisabled(t *testing.T) {
	cfg := testServeConfig(t)
	cfg.Database.AutoMigrate = false
	openErr := errors.New("stop here")

	deps := &ServeDeps{
		MigratorFactory: func(store.Driver, string) (AutoMigrator, error) {
			t.Error("MigratorFactory should not be called when auto-migrate is disabled")
			return nil, errors.New("unexpected")
		},
		BackendOpener: func(context.Context, store.Config, *slog.Logger) (*store.Backend, error) {
			return nil, openErr
		},
	}

	cmd, _ := testCommand()
	err := runServeWithDeps(context.Background(), cfg, cmd, deps)
	assert.ErrorIs(t, err, openErr)
}

func TestServe_AutoMigrateErrorSurfaced(t *testing.T) {
	cfg := testServeConfig(t)
	upErr := errors.New("migration 2 failed")
	migrator := &mockMigrator{upError: upErr}

	deps := &ServeDeps{
		MigratorFactory: func(store.Driver, string) (AutoMigrator, error) {
			return migrator, nil
		},
		BackendOpener: func(context.Context, store.Config, *slog.Logger) (*store.Backend, error) {
			t.Error("backend must not open after a failed migration")
			return nil, errors.New("unexpected")
		},
	}

	cmd, _ := testCommand()
	err := runServeWithDeps(context.Background(), cfg, cmd, deps)
	assert.ErrorIs(t, err, upErr)
	assert.True(t, migrator.closeCalled)
}

func TestServe_MigratorCreationError(t *testing.T) {
	cfg := testServeConfig(t)
	factoryErr := errors.New("bad url")

	deps := &ServeDeps{
		MigratorFactory: func(store.Driver, string) (AutoMigrator, error) {
			return nil, factoryErr
		},
	}

	cmd, _ := testCommand()
	err := runServeWithDeps(context.Background(), cfg, cmd, deps)
	assert.ErrorIs(t, err, factoryErr)
}

func TestServe_ObservabilityStartFailureStopsSweeper(t *testing.T) {
	cfg := testServeConfig(t)
	cfg.Metrics.Addr = "127.0.0.1:0"
	cfg.Sessions.SweepInterval = time.Hour
	startErr := errors.New("address in use")
	obs := &mockObservabilityServer{startErr: startErr, metrics: observability.NewMetrics(prometheus.NewRegistry())}

	deps := &ServeDeps{
		MigratorFactory: func(store.Driver, string) (AutoMigrator, error) {
			return &mockMigrator{}, nil
		},
		BackendOpener: func(context.Context, store.Config, *slog.Logger) (*store.Backend, error) {
			return memoryBackend(), nil
		},
		ObservabilityServerFactory: func(string, observability.ReadinessChecker, *slog.Logger) ObservabilityServer {
			return obs
		},
	}

	cmd, _ := testCommand()
	done := make(chan error, 1)
	go func() {
		done <- runServeWithDeps(context.Background(), cfg, cmd, deps)
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, startErr)
	case <-time.After(5 * time.Second):
		t.Fatal("serve hung waiting for the sweeper")
	}
}

func TestServe_ListenFailure(t *testing.T) {
	cfg := testServeConfig(t)
	listenErr := errors.New("permission denied")

	deps := &ServeDeps{
		MigratorFactory: func(store.Driver, string) (AutoMigrator, error) {
			return &mockMigrator{}, nil
		},
		BackendOpener: func(context.Context, store.Config, *slog.Logger) (*store.Backend, error) {
			return memoryBackend(), nil
		},
		ListenerFactory: func(string, string) (net.Listener, error) {
			return nil, listenErr
		},
	}

	cmd, _ := testCommand()
	err := runServeWithDeps(context.Background(), cfg, cmd, deps)
	assert.ErrorIs(t, err, listenErr)
	assert.True(t, strings.Contains(err.Error(), "permission denied"))
}

func TestMonitorServerErrors(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(new(bytes.Buffer), nil))

	t.Run("error cancels", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		errCh := make(chan error, 1)
		errCh <- errors.New("boom")

		monitorServerErrors(ctx, cancel, errCh, "test", logger)
		assert.Error(t, ctx.Err())
	})

	t.Run("closed channel does not cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		errCh := make(chan error)
		close(errCh)

		monitorServerErrors(ctx, cancel, errCh, "test", logger)
		assert.NoError(t, ctx.Err())
	})

	t.Run("returns when context is done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		monitorServerErrors(ctx, cancel, make(chan error), "test", logger)
	})
}
