package idp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrNonceMismatch is returned when the ID token nonce differs from the one
	// sent in the authorization request.
	ErrNonceMismatch = errors.New("idp: id token nonce does not match")

	// ErrNonceMissing is returned when a nonce was expected but the ID token has none.
	ErrNonceMissing = errors.New("idp: id token missing nonce claim")
)

// TokenExchangeError reports a failed authorization code exchange. Code and
// Description carry the provider's OAuth error when it sent one. The raw
// provider detail is safe to surface to the browser.
type TokenExchangeError struct {
	StatusCode  int
	Code        string
	Description string
	Err         error
}

func (e *TokenExchangeError) Error() string {
	return "token exchange failed: " + e.Detail()
}

// Detail is a one line summary of what the provider said.
func (e *TokenExchangeError) Detail() string {
	switch {
	case e.Code != "" && e.Description != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	case e.Code != "":
		return e.Code
	case e.Err != nil:
		return e.Err.Error()
	default:
		return fmt.Sprintf("identity provider returned %d", e.StatusCode)
	}
}

func (e *TokenExchangeError) Unwrap() error { return e.Err }

// UserinfoFetchError reports a failed userinfo call. It never aborts a login.
type UserinfoFetchError struct {
	Err error
}

func (e *UserinfoFetchError) Error() string {
	return "userinfo fetch failed: " + e.Err.Error()
}

func (e *UserinfoFetchError) Unwrap() error { return e.Err }

// providerMessage pulls a human readable message out of a non standard token
// endpoint error body, falling back to the raw text.
func providerMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error_description", "message", "error.message", "error"} {
			if v := gjson.GetBytes(body, path); v.Type == gjson.String && v.Str != "" {
				return v.Str
			}
		}
	}
	return strings.TrimSpace(string(body))
}
