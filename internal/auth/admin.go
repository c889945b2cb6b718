// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// adminHashCost is the bcrypt cost used by HashAdminToken.
const adminHashCost = 12

var (
	// ErrAdminTokenMissing means the request carried no bearer token.
	ErrAdminTokenMissing = errors.New("admin token required")
	// ErrAdminTokenInvalid means the bearer token did not match.
	ErrAdminTokenInvalid = errors.New("invalid admin token")
)

// AdminAuthenticator checks operator bearer tokens against a bcrypt hash.
type AdminAuthenticator struct {
	hash []byte
}

// NewAdminAuthenticator validates that hash is a bcrypt hash. An empty hash
// yields an authenticator that rejects every token, which keeps the operator
// API closed until a hash is configured.
func NewAdminAuthenticator(hash string) (*AdminAuthenticator, error) {
	if hash == "" {
		return &AdminAuthenticator{}, nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("ADMIN_TOKEN_HASH is not a bcrypt hash: %w", err)
	}
	return &AdminAuthenticator{hash: []byte(hash)}, nil
}

// Enabled reports whether an admin hash is configured.
func (a *AdminAuthenticator) Enabled() bool {
	return len(a.hash) > 0
}

// Validate reports whether token matches the configured hash.
func (a *AdminAuthenticator) Validate(token string) bool {
	if !a.Enabled() || token == "" {
		return false
	}
	// bcrypt ignores input past 72 bytes; longer tokens are rejected rather than truncated.
	if len(token) > 72 {
		return false
	}
	return bcrypt.CompareHashAndPassword(a.hash, []byte(token)) == nil
}

// Check validates an Authorization header value. It returns
// ErrAdminTokenMissing when no bearer token is present and
// ErrAdminTokenInvalid when the token does not match.
func (a *AdminAuthenticator) Check(header string) error {
	token, ok := BearerToken(header)
	if !ok {
		recordAdminAuth("missing")
		return ErrAdminTokenMissing
	}
	if !a.Validate(token) {
		recordAdminAuth("invalid")
		return ErrAdminTokenInvalid
	}
	recordAdminAuth("ok")
	return nil
}

// HashAdminToken returns the bcrypt hash to configure as ADMIN_TOKEN_HASH.
func HashAdminToken(token string) (string, error) {
	if len(token) < 16 {
		return "", fmt.Errorf("admin token must be at least 16 characters")
	}
	if len(token) > 72 {
		return "", fmt.Errorf("admin token must be at most 72 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), adminHashCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash admin token: %w", err)
	}
	return string(hash), nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. The scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
