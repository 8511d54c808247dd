package domain

import "time"

// PendingLogin binds a /callback to the /login that started it. It is keyed
// by the OAuth state value and consumed exactly once.
type PendingLogin struct {
	State        string
	Nonce        string
	CodeVerifier string // PKCE verifier
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the pending login is past its expiry at now.
func (p PendingLogin) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}
