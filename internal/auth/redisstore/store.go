// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package redisstore keeps sessions in Redis. Each session is one JSON value
// under session:<id> whose key TTL follows the session expiry, so Redis
// evicts expired sessions on its own.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/holomush/trainhub/internal/auth"
)

const (
	keyPrefix = "session:"
	scanBatch = 256
)

// record is the stored form of a session.
type record struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Fresh     bool      `json:"fresh"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStore implements auth.SessionStore on Redis.
type SessionStore struct {
	rdb redis.Cmdable
	now func() time.Time
}

// NewSessionStore creates a SessionStore on the given client.
func NewSessionStore(rdb redis.Cmdable) *SessionStore {
	return &SessionStore{rdb: rdb, now: time.Now}
}

func sessionKey(id string) string {
	return keyPrefix + id
}

func encode(s *auth.Session) ([]byte, error) {
	return json.Marshal(record{
		UserID:    s.UserID.String(),
		ExpiresAt: s.ExpiresAt.UTC(),
		Fresh:     s.Fresh,
		CreatedAt: s.CreatedAt.UTC(),
	})
}

func decode(id string, data []byte) (*auth.Session, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, oops.Code("SESSION_CORRUPT").With("operation", "decode session").Wrap(err)
	}
	userID, err := ulid.Parse(rec.UserID)
	if err != nil {
		return nil, oops.Code("SESSION_CORRUPT_USER_ID").With("user_id", rec.UserID).Wrap(err)
	}
	return &auth.Session{
		ID:        id,
		UserID:    userID,
		ExpiresAt: rec.ExpiresAt,
		Fresh:     rec.Fresh,
		CreatedAt: rec.CreatedAt,
	}, nil
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(ctx context.Context, id string) (*auth.Session, error) {
	data, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").With("operation", "get session").Wrap(err)
	}
	return decode(id, data)
}

// Put stores the session with a key TTL matching its remaining lifetime.
// A session that has already expired is removed instead.
func (s *SessionStore) Put(ctx context.Context, session *auth.Session) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		if err := s.rdb.Del(ctx, sessionKey(session.ID)).Err(); err != nil {
			return oops.Code("SESSION_PUT_FAILED").With("operation", "drop expired session").Wrap(err)
		}
		return nil
	}

	payload, err := encode(session)
	if err != nil {
		return oops.Code("SESSION_PUT_FAILED").With("operation", "encode session").Wrap(err)
	}
	if err := s.rdb.Set(ctx, sessionKey(session.ID), payload, ttl).Err(); err != nil {
		return oops.Code("SESSION_PUT_FAILED").
			With("operation", "set session").
			With("user_id", session.UserID.String()).
			Wrap(err)
	}
	return nil
}

// Refresh rewrites an existing session and its key TTL. The write is SET XX,
// so a key deleted by a concurrent logout stays deleted.
func (s *SessionStore) Refresh(ctx context.Context, session *auth.Session) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return oops.Code("SESSION_NOT_FOUND").With("operation", "refresh expired session").Wrap(auth.ErrNotFound)
	}

	payload, err := encode(session)
	if err != nil {
		return oops.Code("SESSION_REFRESH_FAILED").With("operation", "encode session").Wrap(err)
	}
	ok, err := s.rdb.SetXX(ctx, sessionKey(session.ID), payload, ttl).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return oops.Code("SESSION_REFRESH_FAILED").
			With("operation", "set session").
			With("user_id", session.UserID.String()).
			Wrap(err)
	}
	if !ok {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes a session by ID.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	n, err := s.rdb.Del(ctx, sessionKey(id)).Result()
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").With("operation", "delete session").Wrap(err)
	}
	if n == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteExpiredBefore removes sessions whose expiry is at or before t. Redis
// already drops keys once their TTL passes, so this only finds work when t is
// ahead of the server clock.
func (s *SessionStore) DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error) {
	var deleted int64
	iter := s.rdb.Scan(ctx, 0, keyPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := s.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return deleted, oops.Code("SESSION_DELETE_EXPIRED_FAILED").With("operation", "get session").Wrap(err)
		}
		var rec record
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		if rec.ExpiresAt.After(t) {
			continue
		}
		n, err := s.rdb.Del(ctx, key).Result()
		if err != nil {
			return deleted, oops.Code("SESSION_DELETE_EXPIRED_FAILED").With("operation", "delete session").Wrap(err)
		}
		deleted += n
	}
	if err := iter.Err(); err != nil {
		return deleted, oops.Code("SESSION_DELETE_EXPIRED_FAILED").With("operation", "scan sessions").Wrap(err)
	}
	return deleted, nil
}

var _ auth.SessionStore = (*SessionStore)(nil)
