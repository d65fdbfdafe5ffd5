// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func stopServer(t *testing.T, s *Server) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestServer_Probes(t *testing.T) {
	tests := []struct {
		name      string
		readiness ReadinessChecker
		path      string
		status    int
		body      string
	}{
		{"liveness", nil, "/healthz/liveness", http.StatusOK, "ok\n"},
		{"readiness without checker", nil, "/healthz/readiness", http.StatusOK, "ok\n"},
		{
			"readiness when dependencies answer",
			func(context.Context) error { return nil },
			"/healthz/readiness", http.StatusOK, "ok\n",
		},
		{
			"readiness when a dependency is down",
			func(context.Context) error { return errors.New("database unavailable") },
			"/healthz/readiness", http.StatusServiceUnavailable, "not ready\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer("127.0.0.1:0", tt.readiness, nil)
			status, body := get(t, s.Handler(), tt.path)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.body, body)
		})
	}
}

func TestServer_ReadinessHasDeadline(t *testing.T) {
	var deadline bool
	s := NewServer("127.0.0.1:0", func(ctx context.Context) error {
		_, deadline = ctx.Deadline()
		return nil
	}, nil)

	status, _ := get(t, s.Handler(), "/healthz/readiness")
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, deadline)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	s := NewServer("127.0.0.1:0", nil, nil)
	m := s.Metrics()

	m.SignupAttempt("success")
	m.LoginAttempt("invalid_credentials")
	m.LoginAttempt("invalid_credentials")
	m.SessionCreated()
	m.SessionValidated("valid")
	m.CookieRefreshFailed()
	m.SessionsSwept(3)
	m.HTTPRequest("/login", http.StatusSeeOther)
	m.HTTPRequest("", http.StatusNotFound)

	status, body := get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, status)

	for _, line := range []string{
		`trainhub_signups_total{result="success"} 1`,
		`trainhub_logins_total{result="invalid_credentials"} 2`,
		`trainhub_sessions_created_total 1`,
		`trainhub_session_validations_total{result="valid"} 1`,
		`trainhub_cookie_refresh_failures_total 1`,
		`trainhub_sessions_swept_total 3`,
		`trainhub_http_requests_total{route="/login",status="303"} 1`,
		`trainhub_http_requests_total{route="unmatched",status="404"} 1`,
	} {
		assert.Contains(t, body, line)
	}
	assert.Contains(t, body, "go_goroutines")
	assert.Contains(t, body, "process_")
}

func TestServer_Lifecycle(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := NewServer("127.0.0.1:0", nil, nil)
	errCh, err := s.Start()
	require.NoError(t, err)
	require.NotEmpty(t, s.Addr())

	_, err = s.Start()
	require.Error(t, err, "double start")

	resp, err := http.Get("http://" + s.Addr() + "/healthz/liveness")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	stopServer(t, s)
	stopServer(t, s)

	select {
	case err, ok := <-errCh:
		assert.False(t, ok && err != nil, "unexpected serve error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("error channel not closed after shutdown")
	}
	http.DefaultClient.CloseIdleConnections()
}

func TestServer_StopWithoutStart(t *testing.T) {
	stopServer(t, NewServer("127.0.0.1:0", nil, nil))
}

func TestServer_ErrorChannelReportsServeErrors(t *testing.T) {
	s := NewServer("127.0.0.1:0", nil, nil)
	errCh, err := s.Start()
	require.NoError(t, err)
	t.Cleanup(func() { stopServer(t, s) })

	require.NoError(t, s.listener.Close())

	select {
	case serveErr := <-errCh:
		assert.Error(t, serveErr)
	case <-time.After(2 * time.Second):
		t.Fatal("serve error not reported")
	}
}

func TestServer_ListenFailure(t *testing.T) {
	s := NewServer("256.0.0.1:0", nil, nil)
	_, err := s.Start()
	require.Error(t, err)

	// A failed start leaves the server startable.
	s.addr = "127.0.0.1:0"
	_, err = s.Start()
	require.NoError(t, err)
	stopServer(t, s)
}
