package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// MinHS256SecretSize is the smallest accepted HMAC secret, in bytes.
const MinHS256SecretSize = 32

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	Sign(jwt.Claims) (string, error)
}

// HS256Signer signs tokens with a shared HMAC secret. The portal is both the
// issuer and the only consumer of session cookies, so a symmetric key is enough.
type HS256Signer struct {
	secret []byte
}

// NewSignerHS256 creates an HS256 signer. Short secrets are rejected.
func NewSignerHS256(secret []byte) (*HS256Signer, error) {
	if len(secret) < MinHS256SecretSize {
		return nil, fmt.Errorf("jwtx: HS256 secret must be at least %d bytes, got %d", MinHS256SecretSize, len(secret))
	}
	return &HS256Signer{secret: secret}, nil
}

func (s *HS256Signer) Alg() string { return jwt.SigningMethodHS256.Alg() }

// Sign turns the claims into a signed compact JWT.
func (s *HS256Signer) Sign(claims jwt.Claims) (string, error) {
	if s == nil || len(s.secret) == 0 {
		return "", errors.New("jwtx: nil HS256 signer")
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
