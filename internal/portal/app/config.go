package app

import (
	"os"
	"strings"
	"time"

	"github.com/aussiebroadwan/portal/internal/portal/idp"
	"github.com/aussiebroadwan/portal/pkg/envx"
	"github.com/aussiebroadwan/portal/pkg/httpx"
)

type Config struct {
	SessionSecret string `env:"PORTAL_SESSION_SECRET" validate:"required,min=32"` // Required: signs session cookies

	IssuerURL         string        `env:"OIDC_ISSUER_URL" validate:"required,url"` // Required, or COGNITO_REGION + COGNITO_USERPOOL_ID
	ClientID          string        `env:"OIDC_CLIENT_ID" validate:"required"`
	ClientSecret      string        `env:"OIDC_CLIENT_SECRET"`
	RedirectURI       string        `env:"OIDC_REDIRECT_URI" validate:"required,url"`
	Scopes            []string      `env:"OIDC_SCOPES" validate:"min=1"`
	LogoutDomain      string        `env:"OIDC_LOGOUT_DOMAIN" validate:"required,url"`
	LogoutRedirectURI string        `env:"OIDC_LOGOUT_REDIRECT_URI" validate:"omitempty,url"`
	VerifyIDToken     bool          `env:"OIDC_VERIFY_ID_TOKEN"`
	IdPTimeout        time.Duration `env:"OIDC_HTTP_TIMEOUT" validate:"gt=0"`

	LandingURL      string        `env:"PORTAL_LANDING_URL" validate:"required,url"`
	AllowedOrigins  []string      `env:"PORTAL_ALLOWED_ORIGINS" validate:"dive,url"`
	ForecastURL     string        `env:"PORTAL_FORECAST_URL" validate:"required,url"`
	ForecastTimeout time.Duration `env:"PORTAL_FORECAST_TIMEOUT" validate:"gt=0"`
	SessionTTL      time.Duration `env:"PORTAL_SESSION_TTL" validate:"gt=0"`
	LoginTTL        time.Duration `env:"PORTAL_LOGIN_TTL" validate:"gt=0"`
	LogoutScope     string        `env:"PORTAL_LOGOUT_SCOPE" validate:"oneof=session all"`
	CookieSecure    bool          `env:"PORTAL_COOKIE_SECURE"`
	CookieSameSite  string        `env:"PORTAL_COOKIE_SAMESITE" validate:"oneof=lax strict none"`

	StoreDriver    string `env:"PORTAL_STORE_DRIVER" validate:"oneof=memory sqlite redis"`
	DatabaseFile   string `env:"PORTAL_DATABASE_FILE" validate:"required_if=StoreDriver sqlite"` // Required for the sqlite driver
	MasterKey      string `env:"PORTAL_MASTER_KEY"`                                              // Optional: seals tokens at rest; ephemeral when unset
	MasterKeyPath  string `env:"PORTAL_MASTER_KEY_PATH"`                                         // Optional: file holding the master key, wins over PORTAL_MASTER_KEY
	RedisAddr      string `env:"PORTAL_REDIS_ADDR" validate:"required_if=StoreDriver redis"`     // Required for the redis driver
	RedisPassword  string `env:"PORTAL_REDIS_PASSWORD"`
	RedisDB        int    `env:"PORTAL_REDIS_DB" validate:"min=0"`
	RedisKeyPrefix string `env:"PORTAL_REDIS_KEY_PREFIX"`

	Env                  string        `env:"ENV"`                                              // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        `env:"LOG_LEVEL" validate:"oneof=debug info warn error"` // default: info
	LogFormat            string        `env:"LOG_FORMAT" validate:"oneof=json text"`            // default: json
	Port                 int           `env:"PORT" validate:"min=1,max=65535"`                  // default: 5050
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" validate:"gt=0"`            // default: 10s
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" validate:"gt=0"`            // default: 5m

	RateLimits httpx.RateLimits // RATELIMIT_{AUTH,SESSION,PUBLIC}_*
}

// LoadConfig reads the environment and fails on the first invalid or
// missing setting, naming the variable.
func LoadConfig() (Config, error) {
	var env envx.Loader
	cfg := Config{
		SessionSecret: os.Getenv("PORTAL_SESSION_SECRET"),

		IssuerURL:         os.Getenv("OIDC_ISSUER_URL"),
		ClientID:          os.Getenv("OIDC_CLIENT_ID"),
		ClientSecret:      os.Getenv("OIDC_CLIENT_SECRET"),
		RedirectURI:       env.String("OIDC_REDIRECT_URI", "http://localhost:5050/callback"),
		Scopes:            strings.Fields(env.String("OIDC_SCOPES", "openid email phone")),
		LogoutDomain:      os.Getenv("OIDC_LOGOUT_DOMAIN"),
		LogoutRedirectURI: env.String("OIDC_LOGOUT_REDIRECT_URI", "http://localhost:8080/"),
		VerifyIDToken:     env.Bool("OIDC_VERIFY_ID_TOKEN", true),
		IdPTimeout:        env.Duration("OIDC_HTTP_TIMEOUT", idp.DefaultHTTPTimeout),

		LandingURL:      env.String("PORTAL_LANDING_URL", "http://localhost:8080/index.html"),
		AllowedOrigins:  env.List("PORTAL_ALLOWED_ORIGINS", []string{"http://localhost:8080"}),
		ForecastURL:     os.Getenv("PORTAL_FORECAST_URL"),
		ForecastTimeout: env.Duration("PORTAL_FORECAST_TIMEOUT", 10*time.Second),
		SessionTTL:      env.Duration("PORTAL_SESSION_TTL", 8*time.Hour),
		LoginTTL:        env.Duration("PORTAL_LOGIN_TTL", 10*time.Minute),
		LogoutScope:     strings.ToLower(env.String("PORTAL_LOGOUT_SCOPE", "session")),
		CookieSecure:    env.Bool("PORTAL_COOKIE_SECURE", false),
		CookieSameSite:  strings.ToLower(env.String("PORTAL_COOKIE_SAMESITE", "lax")),

		StoreDriver:    strings.ToLower(env.String("PORTAL_STORE_DRIVER", "memory")),
		DatabaseFile:   os.Getenv("PORTAL_DATABASE_FILE"),
		MasterKey:      os.Getenv("PORTAL_MASTER_KEY"),
		MasterKeyPath:  os.Getenv("PORTAL_MASTER_KEY_PATH"),
		RedisAddr:      os.Getenv("PORTAL_REDIS_ADDR"),
		RedisPassword:  os.Getenv("PORTAL_REDIS_PASSWORD"),
		RedisDB:        env.Int("PORTAL_REDIS_DB", 0),
		RedisKeyPrefix: env.String("PORTAL_REDIS_KEY_PREFIX", "portal:"),

		Env:                  env.String("ENV", "dev"),
		LogLevel:             strings.ToLower(env.String("LOG_LEVEL", "info")),
		LogFormat:            strings.ToLower(env.String("LOG_FORMAT", "json")),
		Port:                 env.Int("PORT", 5050),
		ShutdownGracePeriod:  env.Duration("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: env.Duration("HOUSEKEEPING_INTERVAL", 5*time.Minute),

		RateLimits: httpx.LoadRateLimits(&env),
	}

	// Cognito deployments may name the user pool instead of the issuer.
	if cfg.IssuerURL == "" {
		region, pool := os.Getenv("COGNITO_REGION"), os.Getenv("COGNITO_USERPOOL_ID")
		if region != "" && pool != "" {
			cfg.IssuerURL = idp.CognitoIssuer(region, pool)
		}
	}

	if err := env.Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
