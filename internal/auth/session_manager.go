// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/trainhub/pkg/errutil"
)

// SessionManagerConfig configures a SessionManager.
type SessionManagerConfig struct {
	// TTL is the absolute lifetime of a session record. Defaults to DefaultSessionTTL.
	TTL time.Duration
	// Cookie configures the session cookie.
	Cookie CookieConfig
}

// SessionManager creates, validates, refreshes and destroys sessions.
type SessionManager struct {
	sessions SessionStore
	users    UserRepository
	ttl      time.Duration
	cookie   CookieConfig
	logger   *slog.Logger
	metrics  Metrics
	now      func() time.Time
}

// SessionManagerOption customizes a SessionManager.
type SessionManagerOption func(*SessionManager)

// WithManagerLogger sets the logger. Nil is ignored.
func WithManagerLogger(logger *slog.Logger) SessionManagerOption {
	return func(m *SessionManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithManagerMetrics sets the metrics sink. Nil is ignored.
func WithManagerMetrics(metrics Metrics) SessionManagerOption {
	return func(m *SessionManager) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// WithClock overrides the time source. Useful for testing expiry deterministically.
func WithClock(now func() time.Time) SessionManagerOption {
	return func(m *SessionManager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(sessions SessionStore, users UserRepository, cfg SessionManagerConfig, opts ...SessionManagerOption) (*SessionManager, error) {
	if sessions == nil {
		return nil, oops.Code("SESSION_MANAGER_INVALID").Errorf("session store is required")
	}
	if users == nil {
		return nil, oops.Code("SESSION_MANAGER_INVALID").Errorf("users repository is required")
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultSessionTTL
	}
	if cfg.TTL < 0 {
		return nil, oops.Code("SESSION_MANAGER_INVALID").With("ttl", cfg.TTL).Errorf("session TTL must be positive")
	}
	if err := cfg.Cookie.validate(); err != nil {
		return nil, err
	}

	m := &SessionManager{
		sessions: sessions,
		users:    users,
		ttl:      cfg.TTL,
		cookie:   cfg.Cookie,
		logger:   slog.Default(),
		metrics:  NopMetrics{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// CookieName returns the name of the session cookie.
func (m *SessionManager) CookieName() string {
	return m.cookie.Name
}

// SessionIDFromRequest returns the session identifier carried by the request, or "".
func (m *SessionManager) SessionIDFromRequest(t CookieTransport) string {
	id, ok := t.Get(m.cookie.Name)
	if !ok {
		return ""
	}
	return id
}

// CreateSession persists a fresh session for userID and returns the cookie to send.
// Each call yields a new, independent session.
func (m *SessionManager) CreateSession(ctx context.Context, userID ulid.ULID) (*Session, SessionCookie, error) {
	now := m.now()
	session, err := NewSession(userID, now, now.Add(m.ttl))
	if err != nil {
		return nil, SessionCookie{}, oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "build session").
			With("user_id", userID.String()).
			Wrap(err)
	}

	if err := m.sessions.Put(ctx, session); err != nil {
		return nil, SessionCookie{}, oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist session").
			With("user_id", userID.String()).
			Wrap(err)
	}

	m.metrics.SessionCreated()
	return session, m.cookie.sessionCookie(session, now), nil
}

// StartSession creates a session and emits its cookie through t.
// The store write happens first. If the cookie cannot be set, the record is
// removed so no unreachable session is left behind.
func (m *SessionManager) StartSession(ctx context.Context, t CookieTransport, userID ulid.ULID) (*Session, error) {
	session, cookie, err := m.CreateSession(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := SetCookie(t, cookie); err != nil {
		if delErr := m.sessions.Delete(ctx, session.ID); delErr != nil && !errors.Is(delErr, ErrNotFound) {
			errutil.LogError(m.logger, "failed to remove session after cookie failure", delErr)
		}
		return nil, oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "set session cookie").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return session, nil
}

// Authenticate validates the session carried by the request's cookie.
func (m *SessionManager) Authenticate(ctx context.Context, t CookieTransport) (*User, *Session, error) {
	return m.ValidateSession(ctx, t, m.SessionIDFromRequest(t))
}

// ValidateSession resolves id to its user and session.
//
// It returns (nil, nil, nil) when there is no live session. A stale cookie is
// cleared in that case. A fresh session has its flag cleared and its cookie
// re-sent once. A session with less than half its TTL left is extended and its
// cookie re-sent. Cookie failures on this path are logged and discarded; store
// failures are returned.
func (m *SessionManager) ValidateSession(ctx context.Context, t CookieTransport, id string) (*User, *Session, error) {
	if id == "" {
		m.metrics.SessionValidated(ResultAbsent)
		return nil, nil, nil
	}
	if !ValidSessionID(id) {
		m.clearCookie(ctx, t)
		m.metrics.SessionValidated(ResultAbsent)
		return nil, nil, oops.Code("SESSION_MALFORMED_ID").
			With("length", len(id)).
			Wrap(ErrUnauthorized)
	}

	now := m.now()
	session, err := m.sessions.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		m.clearCookie(ctx, t)
		m.metrics.SessionValidated(ResultAbsent)
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session").
			Wrap(err)
	}

	if session.IsExpiredAt(now) {
		if err := m.evict(ctx, session.ID); err != nil {
			return nil, nil, err
		}
		m.clearCookie(ctx, t)
		m.metrics.SessionValidated(ResultExpired)
		return nil, nil, nil
	}

	user, err := m.users.GetByID(ctx, session.UserID)
	if errors.Is(err, ErrNotFound) {
		if err := m.evict(ctx, session.ID); err != nil {
			return nil, nil, err
		}
		m.clearCookie(ctx, t)
		m.metrics.SessionValidated(ResultAbsent)
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session user").
			With("user_id", session.UserID.String()).
			Wrap(err)
	}

	resend := false
	if session.Fresh {
		session.Fresh = false
		resend = true
	}
	if session.ExpiresAt.Sub(now) < m.ttl/2 {
		session.ExpiresAt = now.Add(m.ttl)
		resend = true
	}

	if resend {
		err := m.sessions.Refresh(ctx, session)
		if errors.Is(err, ErrNotFound) {
			// Logged out or swept since the Get above.
			m.clearCookie(ctx, t)
			m.metrics.SessionValidated(ResultAbsent)
			return nil, nil, nil
		}
		if err != nil {
			return nil, nil, oops.Code("SESSION_VALIDATE_FAILED").
				With("operation", "refresh session").
				Wrap(err)
		}
		cookie := m.cookie.sessionCookie(session, now)
		m.bestEffort(ctx, "refresh_session_cookie", func() error {
			return SetCookie(t, cookie)
		})
	}

	m.metrics.SessionValidated(ResultValid)
	return user, session, nil
}

// DestroySession deletes the live session id and clears the client cookie.
// It returns ErrUnauthorized if id does not name a live session.
func (m *SessionManager) DestroySession(ctx context.Context, t CookieTransport, id string) error {
	if id == "" {
		return unauthorized("no session cookie")
	}

	session, err := m.sessions.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return unauthorized("session not found")
	}
	if err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "get session").
			Wrap(err)
	}

	if session.IsExpiredAt(m.now()) {
		if err := m.evict(ctx, session.ID); err != nil {
			return err
		}
		m.clearCookie(ctx, t)
		return unauthorized("session expired")
	}

	if err := m.sessions.Delete(ctx, session.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return unauthorized("session not found")
		}
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}

	if err := SetCookie(t, m.cookie.blankCookie()); err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "clear session cookie").
			Wrap(err)
	}
	return nil
}

// evict deletes an expired or orphaned session. A concurrent delete is not an error.
func (m *SessionManager) evict(ctx context.Context, id string) error {
	if err := m.sessions.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("SESSION_EVICT_FAILED").
			With("operation", "delete stale session").
			Wrap(err)
	}
	return nil
}

func (m *SessionManager) clearCookie(ctx context.Context, t CookieTransport) {
	cookie := m.cookie.blankCookie()
	m.bestEffort(ctx, "clear_session_cookie", func() error {
		return SetCookie(t, cookie)
	})
}

// bestEffort runs a cookie write whose failure must not fail the request.
// Only transport calls go through here; store calls always propagate.
func (m *SessionManager) bestEffort(ctx context.Context, op string, fn func() error) {
	if err := fn(); err != nil {
		m.metrics.CookieRefreshFailed()
		m.logger.WarnContext(ctx, "best-effort cookie write failed",
			"operation", op,
			"error", err.Error(),
		)
	}
}
