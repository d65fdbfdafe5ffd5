// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/scrypt"
)

// Default scrypt parameters. N=2^14, r=8, p=1 costs roughly 16 MB and tens of
// milliseconds per hash on commodity hardware.
const (
	DefaultScryptN = 16384
	DefaultScryptR = 8
	DefaultScryptP = 1

	ScryptKeyLen  = 64 // digest length in bytes (128 hex chars)
	ScryptSaltLen = 16 // salt length in bytes (32 hex chars)
)

// credentialSeparator joins digest and salt. It is outside the hex alphabet.
const credentialSeparator = ":"

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a stored credential of the form "<digestHex>:<saltHex>".
	Hash(password string) (string, error)

	// Verify reports whether password matches the stored credential.
	// Malformed credentials verify as false.
	Verify(stored, password string) bool
}

// ScryptParams are the scrypt cost parameters.
type ScryptParams struct {
	N int
	R int
	P int
}

// DefaultScryptParams returns the production cost parameters.
func DefaultScryptParams() ScryptParams {
	return ScryptParams{N: DefaultScryptN, R: DefaultScryptR, P: DefaultScryptP}
}

// ScryptHasher implements PasswordHasher using scrypt with a fresh salt per hash.
type ScryptHasher struct {
	params ScryptParams
}

// NewScryptHasher creates a ScryptHasher with the default parameters.
func NewScryptHasher() *ScryptHasher {
	return &ScryptHasher{params: DefaultScryptParams()}
}

// NewScryptHasherWithParams creates a ScryptHasher with explicit cost parameters.
// N must be a power of two greater than 1.
func NewScryptHasherWithParams(params ScryptParams) (*ScryptHasher, error) {
	if params.N <= 1 || params.N&(params.N-1) != 0 {
		return nil, oops.Code("HASHER_INVALID_PARAMS").With("n", params.N).Errorf("scrypt N must be a power of two greater than 1")
	}
	if params.R <= 0 || params.P <= 0 {
		return nil, oops.Code("HASHER_INVALID_PARAMS").
			With("r", params.R).
			With("p", params.P).
			Errorf("scrypt r and p must be positive")
	}
	return &ScryptHasher{params: params}, nil
}

// Hash derives a digest for password with a fresh random salt.
// The empty password is accepted; password policy belongs to input validation.
func (h *ScryptHasher) Hash(password string) (string, error) {
	salt := make([]byte, ScryptSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}
	saltHex := hex.EncodeToString(salt)

	digest, err := h.derive(password, saltHex)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(digest) + credentialSeparator + saltHex, nil
}

// Verify re-derives the digest with the stored salt and compares in constant time.
func (h *ScryptHasher) Verify(stored, password string) bool {
	digestHex, saltHex, ok := splitCredential(stored)
	if !ok {
		return false
	}

	expected, err := hex.DecodeString(digestHex)
	if err != nil || len(expected) != ScryptKeyLen {
		return false
	}

	computed, err := h.derive(password, saltHex)
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(computed, expected) == 1
}

// derive runs scrypt. The salt input is the hex salt text, not the decoded bytes,
// so credentials written by other scryptSync(password, saltHex, 64) producers verify.
func (h *ScryptHasher) derive(password, saltHex string) ([]byte, error) {
	digest, err := scrypt.Key([]byte(password), []byte(saltHex), h.params.N, h.params.R, h.params.P, ScryptKeyLen)
	if err != nil {
		return nil, oops.Code("AUTH_KDF_FAILED").
			With("n", h.params.N).
			With("r", h.params.R).
			With("p", h.params.P).
			Wrap(err)
	}
	return digest, nil
}

// splitCredential splits "<digestHex>:<saltHex>" and checks both halves are non-empty hex.
func splitCredential(stored string) (digestHex, saltHex string, ok bool) {
	parts := strings.Split(stored, credentialSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	if _, err := hex.DecodeString(parts[1]); err != nil {
		return "", "", false
	}
	return parts[0], parts[1], true
}
