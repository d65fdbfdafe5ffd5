// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/trainhub/internal/auth"
)

// SessionStore implements auth.SessionStore using PostgreSQL.
type SessionStore struct {
	db DBTX
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(db DBTX) *SessionStore {
	return &SessionStore{db: db}
}

// Get retrieves a session by ID, expired or not.
func (s *SessionStore) Get(ctx context.Context, id string) (*auth.Session, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, expires_at, fresh, created_at FROM sessions WHERE id = $1
	`, id)

	var (
		session   auth.Session
		userIDStr string
	)
	err := row.Scan(&session.ID, &userIDStr, &session.ExpiresAt, &session.Fresh, &session.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").
			With("operation", "get session").
			Wrap(err)
	}

	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("SESSION_CORRUPT_USER_ID").With("user_id", userIDStr).Wrap(err)
	}
	session.UserID = userID
	return &session, nil
}

// Put inserts the session or updates its expiry and freshness.
func (s *SessionStore) Put(ctx context.Context, session *auth.Session) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO sessions (id, user_id, expires_at, fresh, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET expires_at = EXCLUDED.expires_at, fresh = EXCLUDED.fresh
	`, session.ID, session.UserID.String(), session.ExpiresAt, session.Fresh, session.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return oops.Code("SESSION_USER_MISSING").
				With("user_id", session.UserID.String()).
				Wrap(auth.ErrNotFound)
		}
		return oops.Code("SESSION_PUT_FAILED").
			With("operation", "upsert session").
			With("user_id", session.UserID.String()).
			Wrap(err)
	}
	return nil
}

// Refresh updates the expiry and freshness of an existing session.
func (s *SessionStore) Refresh(ctx context.Context, session *auth.Session) error {
	result, err := s.db.Exec(ctx, `
		UPDATE sessions SET expires_at = $2, fresh = $3 WHERE id = $1
	`, session.ID, session.ExpiresAt, session.Fresh)
	if err != nil {
		return oops.Code("SESSION_REFRESH_FAILED").
			With("operation", "refresh session").
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes a session by ID.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteExpiredBefore removes every session whose expiry is at or before t.
func (s *SessionStore) DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error) {
	result, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, t)
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

var _ auth.SessionStore = (*SessionStore)(nil)
