package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PORTAL_SESSION_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("OIDC_ISSUER_URL", "https://issuer.example.com")
	t.Setenv("OIDC_CLIENT_ID", "portal-client")
	t.Setenv("OIDC_LOGOUT_DOMAIN", "https://auth.example.com")
	t.Setenv("PORTAL_FORECAST_URL", "https://api.example.com/forecast")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "http://localhost:5050/callback", cfg.RedirectURI)
	require.Equal(t, []string{"openid", "email", "phone"}, cfg.Scopes)
	require.Equal(t, "http://localhost:8080/", cfg.LogoutRedirectURI)
	require.True(t, cfg.VerifyIDToken)
	require.Equal(t, 10*time.Second, cfg.IdPTimeout)
	require.Equal(t, "http://localhost:8080/index.html", cfg.LandingURL)
	require.Equal(t, []string{"http://localhost:8080"}, cfg.AllowedOrigins)
	require.Equal(t, 10*time.Second, cfg.ForecastTimeout)
	require.Equal(t, 8*time.Hour, cfg.SessionTTL)
	require.Equal(t, 10*time.Minute, cfg.LoginTTL)
	require.Equal(t, "session", cfg.LogoutScope)
	require.Equal(t, "lax", cfg.CookieSameSite)
	require.Equal(t, "memory", cfg.StoreDriver)
	require.Equal(t, "portal:", cfg.RedisKeyPrefix)
	require.Equal(t, 5050, cfg.Port)
	require.Equal(t, 5*time.Minute, cfg.HousekeepingInterval)
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("OIDC_SCOPES", "openid profile")
	t.Setenv("OIDC_VERIFY_ID_TOKEN", "false")
	t.Setenv("PORTAL_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")
	t.Setenv("PORTAL_LOGOUT_SCOPE", "ALL")
	t.Setenv("PORTAL_COOKIE_SAMESITE", "none")
	t.Setenv("PORTAL_COOKIE_SECURE", "true")
	t.Setenv("PORTAL_SESSION_TTL", "30m")
	t.Setenv("PORT", "9000")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, []string{"openid", "profile"}, cfg.Scopes)
	require.False(t, cfg.VerifyIDToken)
	require.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.AllowedOrigins)
	require.Equal(t, "all", cfg.LogoutScope)
	require.Equal(t, "none", cfg.CookieSameSite)
	require.True(t, cfg.CookieSecure)
	require.Equal(t, 30*time.Minute, cfg.SessionTTL)
	require.Equal(t, 9000, cfg.Port)
}

func TestLoadConfigCognitoIssuer(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("OIDC_ISSUER_URL", "")
	t.Setenv("COGNITO_REGION", "us-east-1")
	t.Setenv("COGNITO_USERPOOL_ID", "us-east-1_abc")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "https://cognito-idp.us-east-1.amazonaws.com/us-east-1_abc", cfg.IssuerURL)
}

func TestLoadConfigFailsFast(t *testing.T) {
	cases := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"missing secret", "PORTAL_SESSION_SECRET", "", "PORTAL_SESSION_SECRET is required"},
		{"short secret", "PORTAL_SESSION_SECRET", "too-short", "PORTAL_SESSION_SECRET must be at least 32 characters"},
		{"missing issuer", "OIDC_ISSUER_URL", "", "OIDC_ISSUER_URL is required"},
		{"missing client", "OIDC_CLIENT_ID", "", "OIDC_CLIENT_ID is required"},
		{"missing logout domain", "OIDC_LOGOUT_DOMAIN", "", "OIDC_LOGOUT_DOMAIN is required"},
		{"missing forecast", "PORTAL_FORECAST_URL", "", "PORTAL_FORECAST_URL is required"},
		{"bad driver", "PORTAL_STORE_DRIVER", "postgres", "PORTAL_STORE_DRIVER must be one of"},
		{"bad logout scope", "PORTAL_LOGOUT_SCOPE", "tenant", "PORTAL_LOGOUT_SCOPE must be one of"},
		{"bad samesite", "PORTAL_COOKIE_SAMESITE", "sometimes", "PORTAL_COOKIE_SAMESITE must be one of"},
		{"bad origin", "PORTAL_ALLOWED_ORIGINS", "not a url", "PORTAL_ALLOWED_ORIGINS"},
		{"bad port", "PORT", "70000", "PORT"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tc.key, tc.value)

			_, err := LoadConfig()
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestLoadConfigDriverRequirements(t *testing.T) {
	cases := []struct {
		driver  string
		key     string
		value   string
		wantErr string
	}{
		{"redis", "PORTAL_REDIS_ADDR", "localhost:6379", "PORTAL_REDIS_ADDR is required"},
		{"sqlite", "PORTAL_DATABASE_FILE", "portal.db", "PORTAL_DATABASE_FILE is required"},
	}

	for _, tc := range cases {
		t.Run(tc.driver, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv("PORTAL_STORE_DRIVER", tc.driver)
			t.Setenv(tc.key, "")

			_, err := LoadConfig()
			require.ErrorContains(t, err, tc.wantErr)

			t.Setenv(tc.key, tc.value)
			_, err = LoadConfig()
			require.NoError(t, err)
		})
	}

	t.Run("memory needs neither", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("PORTAL_DATABASE_FILE", "")
		t.Setenv("PORTAL_REDIS_ADDR", "")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		require.Equal(t, "memory", cfg.StoreDriver)
	})
}

func TestLoadConfigRejectsMalformedValues(t *testing.T) {
	cases := []struct {
		key     string
		value   string
		wantErr string
	}{
		{"PORT", "not-a-port", `PORT must be an integer, got "not-a-port"`},
		{"PORTAL_REDIS_DB", "zero", `PORTAL_REDIS_DB must be an integer, got "zero"`},
		{"OIDC_VERIFY_ID_TOKEN", "sometimes", `OIDC_VERIFY_ID_TOKEN must be a boolean, got "sometimes"`},
		{"PORTAL_COOKIE_SECURE", "yes please", `PORTAL_COOKIE_SECURE must be a boolean, got "yes please"`},
		{"PORTAL_SESSION_TTL", "eight hours", `PORTAL_SESSION_TTL must be a duration, got "eight hours"`},
		{"OIDC_HTTP_TIMEOUT", "10 seconds", `OIDC_HTTP_TIMEOUT must be a duration, got "10 seconds"`},
		{"RATELIMIT_AUTH_BURST", "0", `RATELIMIT_AUTH_BURST must be positive, got "0"`},
	}

	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tc.key, tc.value)

			_, err := LoadConfig()
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}
