// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// MinPasswordLength is the minimum password length after trimming whitespace.
const MinPasswordLength = 8

// User represents a registered account.
type User struct {
	ID           ulid.ULID
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
// All lookups and writes go through it, so "A@B.com " and "a@b.com" are one account.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateCredentials checks the shape of signup and login input.
// It returns an empty FieldErrors when the input is acceptable.
func ValidateCredentials(email, password string) FieldErrors {
	errs := FieldErrors{}
	if !strings.Contains(email, "@") {
		errs["email"] = MsgInvalidEmail
	}
	if len(strings.TrimSpace(password)) < MinPasswordLength {
		errs["password"] = MsgPasswordTooShort
	}
	return errs
}

// UserRepository manages user persistence.
type UserRepository interface {
	// GetByID retrieves a user by ID.
	// Returns ErrNotFound if no such user exists.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by normalized email.
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Create stores a new user with the given normalized email and stored credential.
	// Returns ErrDuplicateEmail if the email is already registered.
	Create(ctx context.Context, email, passwordHash string) (*User, error)
}
