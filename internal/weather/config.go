package weather

import (
	"os"
	"time"

	"github.com/aussiebroadwan/portal/pkg/envx"
	"github.com/aussiebroadwan/portal/pkg/httpx"
)

const DefaultAPIURL = "https://api.weatherapi.com/v1/forecast.json"

type Config struct {
	APIKey      string        `env:"WEATHER_API_KEY" validate:"required"`
	APIURL      string        `env:"WEATHER_API_URL" validate:"required,url"`
	Location    string        `env:"WEATHER_LOCATION" validate:"required"`
	Days        int           `env:"WEATHER_DAYS" validate:"min=1,max=14"`
	AllowOrigin string        `env:"WEATHER_ALLOW_ORIGIN" validate:"required"`
	Timeout     time.Duration `env:"WEATHER_TIMEOUT" validate:"gt=0"`

	Env                 string        `env:"ENV"`
	LogLevel            string        `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat           string        `env:"LOG_FORMAT" validate:"oneof=json text"`
	Port                int           `env:"PORT" validate:"min=1,max=65535"`
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" validate:"gt=0"`

	RateLimit httpx.RateLimit
}

// LoadConfig reads the environment. A missing API key is a startup error.
func LoadConfig() (Config, error) {
	var env envx.Loader
	cfg := Config{
		APIKey:      os.Getenv("WEATHER_API_KEY"),
		APIURL:      env.String("WEATHER_API_URL", DefaultAPIURL),
		Location:    env.String("WEATHER_LOCATION", "Dallas"),
		Days:        env.Int("WEATHER_DAYS", 3),
		AllowOrigin: env.String("WEATHER_ALLOW_ORIGIN", "*"),
		Timeout:     env.Duration("WEATHER_TIMEOUT", 10*time.Second),

		Env:                 env.String("ENV", "dev"),
		LogLevel:            env.String("LOG_LEVEL", "info"),
		LogFormat:           env.String("LOG_FORMAT", "json"),
		Port:                env.Int("PORT", 8081),
		ShutdownGracePeriod: env.Duration("SHUTDOWN_GRACE_PERIOD", 10*time.Second),

		RateLimit: httpx.LoadRateLimits(&env).Public,
	}

	if err := env.Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
