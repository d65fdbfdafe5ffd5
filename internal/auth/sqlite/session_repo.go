// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/trainhub/internal/auth"
)

// SessionStore implements auth.SessionStore using SQLite.
// Expiry has one-second resolution.
type SessionStore struct {
	db DB
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(db DB) *SessionStore {
	return &SessionStore{db: db}
}

// Get retrieves a session by ID, expired or not.
func (s *SessionStore) Get(ctx context.Context, id string) (*auth.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, expires_at, fresh, created_at FROM sessions WHERE id = ?`, id)

	var (
		session   auth.Session
		userIDStr string
		expiresAt int64
		createdAt int64
	)
	err := row.Scan(&session.ID, &userIDStr, &expiresAt, &session.Fresh, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
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
	session.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	session.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &session, nil
}

// Put inserts the session or updates its expiry and freshness.
func (s *SessionStore) Put(ctx context.Context, session *auth.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, expires_at, fresh, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET expires_at = excluded.expires_at, fresh = excluded.fresh
	`, session.ID, session.UserID.String(), session.ExpiresAt.Unix(), session.Fresh, session.CreatedAt.Unix())
	if isForeignKeyViolation(err) {
		return oops.Code("SESSION_USER_MISSING").
			With("user_id", session.UserID.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return oops.Code("SESSION_PUT_FAILED").
			With("operation", "upsert session").
			With("user_id", session.UserID.String()).
			Wrap(err)
	}
	return nil
}

// Refresh updates the expiry and freshness of an existing session.
func (s *SessionStore) Refresh(ctx context.Context, session *auth.Session) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET expires_at = ?, fresh = ? WHERE id = ?`,
		session.ExpiresAt.Unix(), session.Fresh, session.ID)
	if err != nil {
		return oops.Code("SESSION_REFRESH_FAILED").
			With("operation", "refresh session").
			Wrap(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return oops.Code("SESSION_REFRESH_FAILED").
			With("operation", "rows affected").
			Wrap(err)
	}
	if n == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes a session by ID.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "rows affected").
			Wrap(err)
	}
	if n == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteExpiredBefore removes every session whose expiry is at or before t.
func (s *SessionStore) DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, t.Unix())
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "rows affected").
			Wrap(err)
	}
	return n, nil
}

var _ auth.SessionStore = (*SessionStore)(nil)
