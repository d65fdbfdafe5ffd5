// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package authtest provides in-memory fakes for auth tests.
package authtest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/trainhub/internal/auth"
)

// MemorySessionStore is a map-backed auth.SessionStore.
type MemorySessionStore struct {
	mu        sync.Mutex
	sessions  map[string]auth.Session
	Puts      int
	Refreshes int
	// Err, when set, is returned by every method.
	Err error
	// BeforeRefresh, when set, runs at the start of Refresh without the lock
	// held, so a test can interleave other store calls.
	BeforeRefresh func(id string)
}

// NewMemorySessionStore creates an empty store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]auth.Session)}
}

// Get returns a copy of the stored session.
func (s *MemorySessionStore) Get(_ context.Context, id string) (*auth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	session, ok := s.sessions[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &session, nil
}

// Put stores a copy of session.
func (s *MemorySessionStore) Put(_ context.Context, session *auth.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.sessions[session.ID] = *session
	s.Puts++
	return nil
}

// Refresh updates the expiry and freshness of a stored session.
func (s *MemorySessionStore) Refresh(_ context.Context, session *auth.Session) error {
	if s.BeforeRefresh != nil {
		s.BeforeRefresh(session.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	stored, ok := s.sessions[session.ID]
	if !ok {
		return auth.ErrNotFound
	}
	stored.ExpiresAt = session.ExpiresAt
	stored.Fresh = session.Fresh
	s.sessions[session.ID] = stored
	s.Refreshes++
	return nil
}

// Delete removes a session.
func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.sessions[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

// DeleteExpiredBefore removes sessions expiring at or before t.
func (s *MemorySessionStore) DeleteExpiredBefore(_ context.Context, t time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	var n int64
	for id, session := range s.sessions {
		if !session.ExpiresAt.After(t) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions.
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// MemoryUserRepository is a map-backed auth.UserRepository.
type MemoryUserRepository struct {
	mu      sync.Mutex
	byID    map[ulid.ULID]auth.User
	byEmail map[string]ulid.ULID
	// Err, when set, is returned by every method.
	Err error
}

// NewMemoryUserRepository creates an empty repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[ulid.ULID]auth.User),
		byEmail: make(map[string]ulid.ULID),
	}
}

// GetByID returns a copy of the user.
func (r *MemoryUserRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	user, ok := r.byID[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &user, nil
}

// GetByEmail returns a copy of the user with the given email.
func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	id, ok := r.byEmail[email]
	if !ok {
		return nil, auth.ErrNotFound
	}
	user := r.byID[id]
	return &user, nil
}

// Create stores a new user, enforcing email uniqueness.
func (r *MemoryUserRepository) Create(_ context.Context, email, passwordHash string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	if _, ok := r.byEmail[email]; ok {
		return nil, auth.ErrDuplicateEmail
	}
	user := auth.User{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	r.byID[user.ID] = user
	r.byEmail[email] = user.ID
	return &user, nil
}

// Delete removes a user. Sessions referencing it become orphans.
func (r *MemoryUserRepository) Delete(id ulid.ULID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.byID[id]; ok {
		delete(r.byEmail, user.Email)
		delete(r.byID, id)
	}
}

// Len returns the number of stored users.
func (r *MemoryUserRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// ErrCommitted is returned by a Transport whose response is already committed.
var ErrCommitted = errors.New("response already committed")

// SetCall records one CookieTransport.Set call.
type SetCall struct {
	Name  string
	Value string
	Attrs auth.CookieAttributes
}

// Transport is a recording auth.CookieTransport.
type Transport struct {
	Cookies map[string]string
	Sets    []SetCall
	// Fail makes every Set return ErrCommitted.
	Fail bool
}

// NewTransport creates a Transport carrying the given request cookies.
func NewTransport(cookies map[string]string) *Transport {
	if cookies == nil {
		cookies = make(map[string]string)
	}
	return &Transport{Cookies: cookies}
}

// Get returns a request cookie.
func (t *Transport) Get(name string) (string, bool) {
	v, ok := t.Cookies[name]
	return v, ok
}

// Set records the call. Successful sets are visible to later Gets, like a browser round trip.
func (t *Transport) Set(name, value string, attrs auth.CookieAttributes) error {
	if t.Fail {
		return ErrCommitted
	}
	t.Sets = append(t.Sets, SetCall{Name: name, Value: value, Attrs: attrs})
	if attrs.MaxAge < 0 {
		delete(t.Cookies, name)
	} else {
		t.Cookies[name] = value
	}
	return nil
}

// Last returns the most recent Set call.
func (t *Transport) Last() (SetCall, bool) {
	if len(t.Sets) == 0 {
		return SetCall{}, false
	}
	return t.Sets[len(t.Sets)-1], true
}

// Reset forgets recorded Set calls.
func (t *Transport) Reset() {
	t.Sets = nil
}

var (
	_ auth.SessionStore    = (*MemorySessionStore)(nil)
	_ auth.UserRepository  = (*MemoryUserRepository)(nil)
	_ auth.CookieTransport = (*Transport)(nil)
)
