// Momoflow - Mobile Money Notification Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/momoflow

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tomtom215/momoflow/internal/config"
)

// ErrInvalidToken is returned for any device token that fails parsing,
// signature, issuer or expiry checks.
var ErrInvalidToken = errors.New("invalid device token")

// DeviceClaims are the claims of a device token. The subject is the device
// id and the JWT ID is matched against the registry on every request.
type DeviceClaims struct {
	jwt.RegisteredClaims
}

// DeviceID returns the subject claim.
func (c *DeviceClaims) DeviceID() string { return c.Subject }

// IssuedToken is a freshly signed device token.
type IssuedToken struct {
	Token     string
	TokenID   string
	ExpiresAt time.Time // zero when the token does not expire
}

// TokenManager signs and verifies device tokens with HMAC-SHA256.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a token manager from the security configuration.
func NewTokenManager(cfg *config.SecurityConfig) (*TokenManager, error) {
	if cfg.DeviceTokenSecret == "" {
		return nil, fmt.Errorf("DEVICE_TOKEN_SECRET is required but was empty")
	}
	return &TokenManager{
		secret: []byte(cfg.DeviceTokenSecret),
		issuer: cfg.DeviceTokenIssuer,
		ttl:    cfg.DeviceTokenTTL,
		now:    time.Now,
	}, nil
}

// Issue signs a new token for deviceID with a fresh token id.
func (m *TokenManager) Issue(deviceID string) (*IssuedToken, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}

	now := m.now()
	issued := &IssuedToken{TokenID: uuid.New().String()}
	claims := &DeviceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        issued.TokenID,
			Subject:   deviceID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if m.ttl > 0 {
		issued.ExpiresAt = now.Add(m.ttl).UTC()
		claims.ExpiresAt = jwt.NewNumericDate(issued.ExpiresAt)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	issued.Token = signed
	return issued, nil
}

// Verify parses tokenString and returns its claims. Every failure wraps
// ErrInvalidToken.
func (m *TokenManager) Verify(tokenString string) (*DeviceClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &DeviceClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*DeviceClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid claims", ErrInvalidToken)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing subject or token id", ErrInvalidToken)
	}
	return claims, nil
}
