package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultLeeway absorbs small clock skew between portal replicas.
const DefaultLeeway = 30 * time.Second

// SessionClaims are the claims carried by the portal session cookie. The
// cookie is only a pointer to the server side record: it carries the session
// id and the record's expiry, never tokens or profile data.
type SessionClaims struct {
	jwt.RegisteredClaims

	// Session ID
	SID string `json:"sid"`
}

// NewSessionClaims builds claims for a session issued at now and expiring at expiresAt.
func NewSessionClaims(sid, issuer string, now, expiresAt time.Time) SessionClaims {
	return SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SID: sid,
	}
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *SessionClaims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateExpiryWithLeeway checks exp and nbf with a grace period for clock skew.
func (c *SessionClaims) ValidateExpiryWithLeeway(now time.Time, leeway time.Duration) error {
	if c.ExpiresAt == nil {
		return ErrInvalidClaim
	}

	if now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}

	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}

	return nil
}
