package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/portal/internal/portal/domain"
	"github.com/aussiebroadwan/portal/pkg/jwtx"
	"github.com/aussiebroadwan/portal/pkg/portalsdk"
)

// SessionIssuer is the iss claim of every session cookie.
const SessionIssuer = "portal"

// Cookies issues and reads the portal's two browser cookies: the signed
// session credential and the short lived login binding.
type Cookies struct {
	Signer   jwtx.Signer
	Verifier jwtx.Verifier
	Secure   bool
	SameSite http.SameSite
}

// NewCookies builds HS256 session cookie handling from the signing secret.
func NewCookies(secret []byte, secure bool, sameSite http.SameSite) (*Cookies, error) {
	signer, err := jwtx.NewSignerHS256(secret)
	if err != nil {
		return nil, err
	}
	return &Cookies{
		Signer:   signer,
		Verifier: jwtx.NewVerifierHS256(secret, SessionIssuer),
		Secure:   secure,
		SameSite: sameSite,
	}, nil
}

// ParseSameSite maps lax, strict and none to http.SameSite.
func ParseSameSite(s string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("unknown SameSite mode %q", s)
	}
}

// SetSession writes the session cookie for sess.
func (c *Cookies) SetSession(w http.ResponseWriter, sess *domain.Session) error {
	token, err := c.Signer.Sign(jwtx.NewSessionClaims(sess.ID, SessionIssuer, sess.CreatedAt, sess.ExpiresAt))
	if err != nil {
		return fmt.Errorf("sign session cookie: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     portalsdk.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
	return nil
}

// SessionID returns the session id carried by a valid session cookie, or
// an empty string when the cookie is absent, forged or expired.
func (c *Cookies) SessionID(r *http.Request) string {
	ck, err := r.Cookie(portalsdk.SessionCookieName)
	if err != nil || ck.Value == "" {
		return ""
	}
	claims, err := c.Verifier.Verify(ck.Value)
	if err != nil {
		return ""
	}
	return claims.SID
}

// ClearSession expires the session cookie.
func (c *Cookies) ClearSession(w http.ResponseWriter) {
	c.expire(w, portalsdk.SessionCookieName, "/")
}

// SetLogin binds state to the browser until expiresAt.
func (c *Cookies) SetLogin(w http.ResponseWriter, state string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     portalsdk.LoginCookieName,
		Value:    state,
		Path:     "/callback",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// LoginState returns the state bound by SetLogin.
func (c *Cookies) LoginState(r *http.Request) string {
	ck, err := r.Cookie(portalsdk.LoginCookieName)
	if err != nil {
		return ""
	}
	return ck.Value
}

// ClearLogin expires the login binding cookie.
func (c *Cookies) ClearLogin(w http.ResponseWriter) {
	c.expire(w, portalsdk.LoginCookieName, "/callback")
}

func (c *Cookies) expire(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}
