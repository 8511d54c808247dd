//go:build e2e

package portal_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/portal/internal/portal/app"
	"github.com/aussiebroadwan/portal/internal/portal/idp/idptest"
	"github.com/aussiebroadwan/portal/pkg/portalsdk"
)

/*
 * End-to-end tests run the whole portal in-process against a real Redis
 * container, the mock identity provider and a fake forecast upstream.
 */

const (
	redisImage    = "redis:7-alpine"
	sessionSecret = "e2e-session-secret-e2e-session-secret"
	masterKey     = "e2e-master-key"
	landingURL    = "http://localhost:8080/index.html"
)

// setupRedis starts a Redis container and returns its address.
func setupRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        redisImage,
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return fmt.Sprintf("%s:%s", host, port.Port())
}

// environment is one identity provider, one forecast upstream and one Redis
// shared by any number of portal replicas.
type environment struct {
	idp           *idptest.Server
	forecast      *httptest.Server
	forecastCalls atomic.Int32
	forecastFail  atomic.Bool
	redisAddr     string
}

func newEnvironment(t *testing.T) *environment {
	t.Helper()

	env := &environment{redisAddr: setupRedis(t)}

	env.idp = idptest.New()
	env.idp.Profile = map[string]any{"sub": "user-123", "email": "a@b.com"}
	t.Cleanup(env.idp.Close)

	env.forecast = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.forecastCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if env.forecastFail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"message":"Internal server error"}`))
			return
		}
		_, _ = w.Write([]byte(`{"forecast":{"forecastday":[{},{},{}]}}`))
	}))
	t.Cleanup(env.forecast.Close)

	return env
}

// startPortal boots a portal replica and returns an SDK client for it.
func (env *environment) startPortal(t *testing.T, mutate ...func(*app.Config)) *portalsdk.Client {
	t.Helper()

	// The listener exists before Start, so the callback URL is known up front.
	srv := httptest.NewUnstartedServer(nil)
	baseURL := "http://" + srv.Listener.Addr().String()

	cfg := app.Config{
		SessionSecret:        sessionSecret,
		IssuerURL:            env.idp.Issuer(),
		ClientID:             env.idp.ClientID,
		ClientSecret:         env.idp.ClientSecret,
		RedirectURI:          baseURL + "/callback",
		Scopes:               []string{"openid", "email", "phone"},
		LogoutDomain:         env.idp.URL,
		LogoutRedirectURI:    "http://localhost:8080/",
		VerifyIDToken:        true,
		IdPTimeout:           5 * time.Second,
		LandingURL:           landingURL,
		AllowedOrigins:       []string{"http://localhost:8080"},
		ForecastURL:          env.forecast.URL,
		ForecastTimeout:      5 * time.Second,
		SessionTTL:           time.Hour,
		LoginTTL:             time.Minute,
		LogoutScope:          "session",
		CookieSameSite:       "lax",
		StoreDriver:          "redis",
		MasterKey:            masterKey,
		RedisAddr:            env.redisAddr,
		RedisKeyPrefix:       "portal-e2e:",
		Env:                  "test",
		LogLevel:             "error",
		LogFormat:            "json",
		Port:                 5050,
		ShutdownGracePeriod:  time.Second,
		HousekeepingInterval: time.Minute,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	application, err := app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	srv.Config.Handler = application.Handler()
	srv.Start()
	t.Cleanup(srv.Close)

	return portalsdk.NewClient(srv.URL)
}

// login drives the browser side of the authorization code flow.
func login(t *testing.T, client *portalsdk.Client) *portalsdk.Session {
	t.Helper()
	ctx := t.Context()

	start, err := client.BeginLogin(ctx)
	require.NoError(t, err)

	resp, err := client.HTTPClient.Get(start.AuthorizeURL)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	back, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)

	session, err := client.CompleteCallback(ctx, back.Query(), start.LoginCookie)
	require.NoError(t, err)
	require.Equal(t, landingURL, session.LandingURL)
	return session
}
