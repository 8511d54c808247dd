package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates a session JWT and gives you back the claims if it's legit.
type Verifier interface {
	Verify(token string) (SessionClaims, error)
}

var (
	ErrMalformed    = errors.New("jwtx: malformed token")
	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
)

// HS256Verifier validates session tokens produced by an HS256Signer sharing the same secret.
type HS256Verifier struct {
	secret []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// NewVerifierHS256 creates a verifier. An empty issuer disables the issuer check.
func NewVerifierHS256(secret []byte, issuer string) *HS256Verifier {
	return &HS256Verifier{
		secret: secret,
		issuer: issuer,
		leeway: DefaultLeeway,
		now:    time.Now,
	}
}

// WithClock replaces the verifier's time source.
func (v *HS256Verifier) WithClock(now func() time.Time) *HS256Verifier {
	v.now = now
	return v
}

// Verify validates the token string and returns its parsed claims.
func (v *HS256Verifier) Verify(tokenStr string) (SessionClaims, error) {
	if tokenStr == "" {
		return SessionClaims{}, ErrMalformed
	}

	// Time based claims are checked below against our own clock.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	var claims SessionClaims
	token, err := parser.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return SessionClaims{}, fmt.Errorf("jwtx: parse or verify: %w", err)
	}
	if !token.Valid {
		return SessionClaims{}, ErrInvalidClaim
	}

	if claims.SID == "" {
		return SessionClaims{}, ErrInvalidClaim
	}
	if err := claims.ValidateIssuer(v.issuer); err != nil {
		return SessionClaims{}, err
	}
	if err := claims.ValidateExpiryWithLeeway(v.now(), v.leeway); err != nil {
		return SessionClaims{}, err
	}

	return claims, nil
}
