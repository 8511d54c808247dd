package portalsdk

import (
	"net/http"

	"github.com/aussiebroadwan/portal/pkg/httpx"
)

// Cookie names shared by the portal server and this client.
const (
	// SessionCookieName carries the signed session credential.
	SessionCookieName = "portal_session"

	// LoginCookieName binds a /callback to the /login that started it.
	LoginCookieName = "portal_login"
)

// ErrorResponse is the JSON body of every failed portal request.
type ErrorResponse = httpx.ErrorEnvelope

// HealthResponse represents the response structure for health check endpoints.
// Used by both /health and /readyz (readyz includes the Checks field).
type HealthResponse struct {
	// Status indicates the overall health status ("ok" or "degraded")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of the portal's critical dependencies.
type HealthChecks struct {
	// Store indicates the session store connection status
	Store string `json:"store"`

	// IdentityProvider indicates whether discovery metadata is loaded
	IdentityProvider string `json:"identity_provider"`
}

// LoginStart is the outcome of GET /login.
type LoginStart struct {
	// AuthorizeURL is the identity provider URL the browser is redirected to.
	AuthorizeURL string

	// LoginCookie must be presented back at /callback.
	LoginCookie *http.Cookie
}
