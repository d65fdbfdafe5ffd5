// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/samber/oops"
)

// Redirect targets returned in Outcome.RedirectTo.
const (
	AuthenticatedPath = "/training"
	SignedOutPath     = "/"
)

// dummyCredential is verified when the email is unknown so the response time
// matches a wrong-password attempt. It is well-formed and never matches.
var dummyCredential = strings.Repeat("0", ScryptKeyLen*2) + credentialSeparator + strings.Repeat("0", ScryptSaltLen*2)

// Outcome is the result of a signup, login or logout.
// Either Errors is populated and nothing happened, or the action completed and
// the caller should redirect to RedirectTo.
type Outcome struct {
	Errors     FieldErrors
	User       *User
	Session    *Session
	RedirectTo string
}

// Service provides signup, login and logout.
type Service struct {
	users    UserRepository
	hasher   PasswordHasher
	sessions *SessionManager
	logger   *slog.Logger
	metrics  Metrics
}

// NewAuthService creates a new Service using the default logger.
func NewAuthService(users UserRepository, hasher PasswordHasher, sessions *SessionManager) (*Service, error) {
	return NewAuthServiceWithLogger(users, hasher, sessions, slog.Default())
}

// NewAuthServiceWithLogger creates a new Service with an explicit logger.
func NewAuthServiceWithLogger(users UserRepository, hasher PasswordHasher, sessions *SessionManager, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("password hasher is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("session manager is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("logger is required")
	}
	return &Service{
		users:    users,
		hasher:   hasher,
		sessions: sessions,
		logger:   logger,
		metrics:  sessions.metrics,
	}, nil
}

// Sessions returns the session manager the service issues sessions through.
func (s *Service) Sessions() *SessionManager {
	return s.sessions
}

// Signup validates input, creates the user and establishes a session.
// Validation failures and an already-registered email are reported in
// Outcome.Errors. Storage faults are returned as errors.
func (s *Service) Signup(ctx context.Context, t CookieTransport, email, password string) (*Outcome, error) {
	email = NormalizeEmail(email)
	if errs := ValidateCredentials(email, password); errs.HasErrors() {
		s.metrics.SignupAttempt(ResultInvalidInput)
		return &Outcome{Errors: errs}, nil
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.metrics.SignupAttempt(ResultError)
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := s.users.Create(ctx, email, hash)
	if errors.Is(err, ErrDuplicateEmail) {
		s.metrics.SignupAttempt(ResultConflict)
		s.logger.DebugContext(ctx, "signup rejected, email taken")
		return &Outcome{Errors: FieldErrors{"email": MsgEmailTaken}}, nil
	}
	if err != nil {
		s.metrics.SignupAttempt(ResultError)
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	session, err := s.sessions.StartSession(ctx, t, user.ID)
	if err != nil {
		s.metrics.SignupAttempt(ResultError)
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "start session").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	s.metrics.SignupAttempt(ResultSuccess)
	s.logger.InfoContext(ctx, "user signed up", "user_id", user.ID.String())
	return &Outcome{User: user, Session: session, RedirectTo: AuthenticatedPath}, nil
}

// Login verifies credentials and establishes a session.
// An unknown email and a wrong password both yield ErrInvalidCredentials, and
// both run the KDF so they take the same time.
func (s *Service) Login(ctx context.Context, t CookieTransport, email, password string) (*Outcome, error) {
	email = NormalizeEmail(email)
	if errs := ValidateCredentials(email, password); errs.HasErrors() {
		s.metrics.LoginAttempt(ResultInvalidInput)
		return &Outcome{Errors: errs}, nil
	}

	user, lookupErr := s.users.GetByEmail(ctx, email)
	if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
		s.metrics.LoginAttempt(ResultError)
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by email").
			Wrap(lookupErr)
	}

	userExists := lookupErr == nil
	target := dummyCredential
	if userExists {
		target = user.PasswordHash
	}

	// Always verify, even for unknown users.
	valid := s.hasher.Verify(target, password)
	if !userExists || !valid {
		s.metrics.LoginAttempt(ResultInvalidCredentials)
		s.logger.DebugContext(ctx, "login rejected")
		return nil, invalidCredentials()
	}

	session, err := s.sessions.StartSession(ctx, t, user.ID)
	if err != nil {
		s.metrics.LoginAttempt(ResultError)
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "start session").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	s.metrics.LoginAttempt(ResultSuccess)
	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID.String())
	return &Outcome{User: user, Session: session, RedirectTo: AuthenticatedPath}, nil
}

// Logout destroys the request's session. It returns ErrUnauthorized when the
// request carries no live session.
func (s *Service) Logout(ctx context.Context, t CookieTransport) (*Outcome, error) {
	id := s.sessions.SessionIDFromRequest(t)
	if err := s.sessions.DestroySession(ctx, t, id); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user logged out")
	return &Outcome{RedirectTo: SignedOutPath}, nil
}
