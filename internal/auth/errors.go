// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned by a UserRepository when the email is already registered.
var ErrDuplicateEmail = errors.New("email already registered")

// ErrInvalidCredentials is returned when login fails. It never says whether the
// email or the password was wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrUnauthorized is returned when a session operation runs without a valid session.
var ErrUnauthorized = errors.New("unauthorized")

// Error codes attached to oops errors raised by this package.
const (
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeUnauthorized       = "AUTH_UNAUTHORIZED"
	CodeEmailTaken         = "AUTH_EMAIL_TAKEN"
)

// User-facing messages. These are safe to render verbatim.
const (
	MsgInvalidEmail       = "Please enter a valid email address."
	MsgPasswordTooShort   = "Password must be at least 8 characters long."
	MsgEmailTaken         = "An account with this email already exists."
	MsgInvalidCredentials = "Could not authenticate user, please check your credentials."
)

// FieldErrors maps a form field name to a human-readable message.
type FieldErrors map[string]string

// HasErrors reports whether any field failed validation.
func (f FieldErrors) HasErrors() bool {
	return len(f) > 0
}

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Wrapf(ErrInvalidCredentials, "%s", MsgInvalidCredentials)
}

func unauthorized(reason string) error {
	return oops.Code(CodeUnauthorized).With("reason", reason).Wrap(ErrUnauthorized)
}
