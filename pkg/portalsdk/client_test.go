package portalsdk_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/portal/pkg/portalsdk"
)

// fakePortal mimics the portal's redirects and cookie handling.
func fakePortal(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(portalsdk.HealthResponse{Status: "ok", Version: "test"})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(portalsdk.ErrorResponse{Error: "degraded"})
	})
	mux.HandleFunc("GET /login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: portalsdk.LoginCookieName, Value: "state-1"})
		http.Redirect(w, r, "https://idp.example.com/oauth2/authorize?state=state-1", http.StatusFound)
	})
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie(portalsdk.LoginCookieName)
		if err != nil || ck.Value != r.URL.Query().Get("state") {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(portalsdk.ErrorResponse{Error: portalsdk.ErrorCodeStateMismatch})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: portalsdk.SessionCookieName, Value: "cookie-1"})
		http.Redirect(w, r, "http://localhost:8080/index.html", http.StatusFound)
	})
	mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie(portalsdk.SessionCookieName)
		if err != nil || ck.Value != "cookie-1" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(portalsdk.ErrorResponse{Error: portalsdk.ErrorCodeUnauthorized})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"email": "a@b.com"})
	})
	mux.HandleFunc("GET /logout", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://idp.example.com/logout?client_id=c", http.StatusFound)
	})
	mux.HandleFunc("GET /forecast", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(portalsdk.ErrorResponse{Error: portalsdk.ErrorCodeForecastFailed, Detail: "503"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientHealth(t *testing.T) {
	t.Parallel()

	client := portalsdk.NewClient(fakePortal(t).URL + "/")

	health, err := client.Health(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", health.Status)

	_, err = client.Readiness(context.Background())
	var apiErr *portalsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	require.Equal(t, "degraded", apiErr.Code)
}

func TestClientLoginFlow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := portalsdk.NewClient(fakePortal(t).URL)

	start, err := client.BeginLogin(ctx)
	require.NoError(t, err)
	require.Contains(t, start.AuthorizeURL, "https://idp.example.com/oauth2/authorize")
	require.Equal(t, "state-1", start.LoginCookie.Value)

	t.Run("state mismatch", func(t *testing.T) {
		_, err := client.CompleteCallback(ctx, url.Values{"code": {"abc123"}, "state": {"other"}}, start.LoginCookie)
		var apiErr *portalsdk.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, portalsdk.ErrorCodeStateMismatch, apiErr.Code)
	})

	session, err := client.CompleteCallback(ctx, url.Values{"code": {"abc123"}, "state": {"state-1"}}, start.LoginCookie)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080/index.html", session.LandingURL)

	profile, err := session.Userinfo(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"email": "a@b.com"}, profile)

	logoutURL, err := session.Logout(ctx)
	require.NoError(t, err)
	require.Equal(t, "https://idp.example.com/logout?client_id=c", logoutURL)
}

func TestSessionUnauthorized(t *testing.T) {
	t.Parallel()

	client := portalsdk.NewClient(fakePortal(t).URL)

	_, err := client.NewSession("forged").Userinfo(context.Background())
	require.True(t, portalsdk.IsUnauthorized(err))
}

func TestClientForecastError(t *testing.T) {
	t.Parallel()

	client := portalsdk.NewClient(fakePortal(t).URL)

	_, err := client.Forecast(context.Background())
	var apiErr *portalsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	require.Equal(t, "503", apiErr.Detail)
	require.False(t, portalsdk.IsUnauthorized(err))
}
