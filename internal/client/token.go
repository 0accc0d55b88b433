package client

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo is what the engine can learn from its backend bearer token
// without holding the signing key.
type TokenInfo struct {
	Subject   string
	ExpiresAt *time.Time
}

// Expired reports whether the token is past its expiry at now.
func (t TokenInfo) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// InspectToken decodes the registered claims of a JWT without verifying its
// signature. Verification stays with the backend; this only lets the engine
// warn early about an expired credential.
func InspectToken(raw string) (*TokenInfo, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	info := &TokenInfo{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time
		info.ExpiresAt = &exp
	}
	return info, nil
}
