/*
Package portalsdk provides a client for the portal's browser facing HTTP surface.

The portal is an OAuth2/OIDC relying party: it drives the authorization code
flow against an identity provider and hands the browser an opaque session
cookie. This package performs the same requests a browser would, which makes
it useful for integration tests and for scripting against a running portal.

# Client vs Session

  - Client: unauthenticated operations (health, readiness, starting a login,
    completing a callback, the public forecast relay)
  - Session: operations that carry the portal session cookie (userinfo, logout)

A full login against a cooperative identity provider looks like:

	client := portalsdk.NewClient("http://localhost:5050")

	start, err := client.BeginLogin(ctx)
	// send the user (or a test harness) to start.AuthorizeURL; the IdP
	// redirects back to /callback?code=...&state=...

	session, err := client.CompleteCallback(ctx, callbackQuery, start.LoginCookie)
	profile, err := session.Userinfo(ctx)
	logoutURL, err := session.Logout(ctx)

The client never follows redirects: the portal answers /login, /callback and
/logout with 302s whose Location and cookies are the interesting part.

# Errors

Non-2xx JSON responses are returned as *APIError carrying the status code and
the portal's {"error","detail"} envelope. IsUnauthorized reports whether an
error means the session is absent or expired.
*/
package portalsdk
