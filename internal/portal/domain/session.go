package domain

import "time"

// Session is the server side record behind a browser's session cookie. It is
// created once at callback completion and deleted at logout; it is never
// partially updated.
type Session struct {
	ID          string
	AccessToken string
	IDToken     string // empty when the provider returned none
	Profile     map[string]any
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
