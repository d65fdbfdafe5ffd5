// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/trainhub/internal/auth"
	"github.com/holomush/trainhub/pkg/errutil"
)

func TestGenerateSessionID(t *testing.T) {
	t.Run("generates cookie-safe identifier", func(t *testing.T) {
		id, err := auth.GenerateSessionID()
		require.NoError(t, err)
		assert.Len(t, id, 40) // 25 bytes base32-encoded
		assert.Regexp(t, `^[a-z2-7]+$`, id)
		assert.True(t, auth.ValidSessionID(id))
	})

	t.Run("generates unique identifiers", func(t *testing.T) {
		seen := make(map[string]struct{})
		for range 100 {
			id, err := auth.GenerateSessionID()
			require.NoError(t, err)
			_, dup := seen[id]
			require.False(t, dup, "duplicate session id %q", id)
			seen[id] = struct{}{}
		}
	})
}

func TestValidSessionID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"empty", "", false},
		{"lower-case base32", "abcdefghijklmnopqrstuvwxyz234567", true},
		{"upper-case rejected", "ABCDEF", false},
		{"padding rejected", "abcdef==", false},
		{"separator rejected", "abc;def", false},
		{"digits outside alphabet rejected", "abc018", false},
		{"too long", string(make([]byte, auth.MaxSessionIDLength+1)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.ValidSessionID(tt.id))
		})
	}
}

func TestNewSession(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	userID := ulid.Make()

	t.Run("creates fresh session", func(t *testing.T) {
		session, err := auth.NewSession(userID, now, now.Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, session.Fresh)
		assert.Equal(t, userID, session.UserID)
		assert.Equal(t, now, session.CreatedAt)
		assert.Equal(t, now.Add(time.Hour), session.ExpiresAt)
		assert.True(t, auth.ValidSessionID(session.ID))
	})

	t.Run("rejects zero user", func(t *testing.T) {
		_, err := auth.NewSession(ulid.ULID{}, now, now.Add(time.Hour))
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_INVALID_USER")
	})

	t.Run("rejects expiry not in the future", func(t *testing.T) {
		_, err := auth.NewSession(userID, now, now)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_INVALID_EXPIRY")
	})
}

func TestSession_IsExpiredAt(t *testing.T) {
	now := time.Now()
	session := &auth.Session{ID: "abc", UserID: ulid.Make(), ExpiresAt: now}

	assert.False(t, session.IsExpiredAt(now.Add(-time.Nanosecond)))
	assert.True(t, session.IsExpiredAt(now), "expired exactly at ExpiresAt")
	assert.True(t, session.IsExpiredAt(now.Add(time.Hour)))
}
