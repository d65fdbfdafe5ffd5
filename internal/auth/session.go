// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session identifier configuration.
const (
	SessionIDBytes     = 25                  // 25 bytes = 40 base32 chars
	DefaultSessionTTL  = 30 * 24 * time.Hour // 30 days
	MaxSessionIDLength = 64
)

var sessionIDEncoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// Session is a server-side login record.
//
// Fresh is true between creation and the first validation. The first validation
// clears it and re-sends the cookie, so the cookie goes out once per session
// rather than on every request.
type Session struct {
	ID        string
	UserID    ulid.ULID
	ExpiresAt time.Time
	Fresh     bool
	CreatedAt time.Time
}

// NewSession creates a fresh Session for userID that expires at expiresAt.
func NewSession(userID ulid.ULID, now, expiresAt time.Time) (*Session, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if !expiresAt.After(now) {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").
			With("expires_at", expiresAt).
			Errorf("expiry must be in the future")
	}

	id, err := GenerateSessionID()
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:        id,
		UserID:    userID,
		ExpiresAt: expiresAt,
		Fresh:     true,
		CreatedAt: now,
	}, nil
}

// IsExpiredAt returns true if the session is expired at the given time.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// GenerateSessionID returns a cookie-safe identifier built from crypto/rand.
func GenerateSessionID() (string, error) {
	b := make([]byte, SessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("SESSION_ID_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionIDBytes).
			Wrap(err)
	}
	return sessionIDEncoding.EncodeToString(b), nil
}

// ValidSessionID reports whether id could have been produced by GenerateSessionID
// or by a peer using the same lower-case base32 alphabet.
func ValidSessionID(id string) bool {
	if id == "" || len(id) > MaxSessionIDLength {
		return false
	}
	return strings.Trim(id, "abcdefghijklmnopqrstuvwxyz234567") == ""
}

// SessionStore persists sessions. Every method touches a single record.
type SessionStore interface {
	// Get retrieves a session by ID.
	// Returns ErrNotFound if absent. Expired records may still be returned;
	// the SessionManager decides validity.
	Get(ctx context.Context, id string) (*Session, error)

	// Put creates or replaces a session record. SessionManager calls it only
	// to create sessions.
	Put(ctx context.Context, session *Session) error

	// Refresh writes the expiry and freshness of an existing record.
	// Returns ErrNotFound if the record is gone; it never inserts.
	Refresh(ctx context.Context, session *Session) error

	// Delete removes a session by ID.
	// Returns ErrNotFound if absent.
	Delete(ctx context.Context, id string) error

	// DeleteExpiredBefore removes every session whose expiry is at or before t
	// and returns the number removed.
	DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error)
}
