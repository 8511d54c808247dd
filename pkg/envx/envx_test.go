package envx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoaderGetters(t *testing.T) {
	t.Setenv("ENVX_STR", "value")
	t.Setenv("ENVX_INT", "42")
	t.Setenv("ENVX_BOOL", "false")
	t.Setenv("ENVX_DUR", "90s")
	t.Setenv("ENVX_MINUTES", "5")
	t.Setenv("ENVX_LIST", " a, b,,c ")
	t.Setenv("ENVX_BLANK", "")

	var l Loader
	require.Equal(t, "value", l.String("ENVX_STR", "d"))
	require.Equal(t, "d", l.String("ENVX_UNSET", "d"))
	require.Equal(t, "d", l.String("ENVX_BLANK", "d"))

	require.Equal(t, 42, l.Int("ENVX_INT", 1))
	require.Equal(t, 1, l.Int("ENVX_BLANK", 1))

	require.False(t, l.Bool("ENVX_BOOL", true))
	require.True(t, l.Bool("ENVX_UNSET", true))

	require.Equal(t, 90*time.Second, l.Duration("ENVX_DUR", time.Second))
	require.Equal(t, 5*time.Minute, l.Duration("ENVX_MINUTES", time.Second))
	require.Equal(t, time.Second, l.Duration("ENVX_UNSET", time.Second))

	require.Equal(t, []string{"a", "b", "c"}, l.List("ENVX_LIST", nil))
	require.Equal(t, []string{"x"}, l.List("ENVX_UNSET", []string{"x"}))

	require.NoError(t, l.Err())
}

func TestLoaderReportsMalformedValues(t *testing.T) {
	t.Setenv("ENVX_INT", "forty")
	t.Setenv("ENVX_BOOL", "maybe")
	t.Setenv("ENVX_DUR", "eight hours")

	var l Loader
	require.Equal(t, 1, l.Int("ENVX_INT", 1))
	require.True(t, l.Bool("ENVX_BOOL", true))
	require.Equal(t, time.Second, l.Duration("ENVX_DUR", time.Second))

	err := l.Err()
	require.Error(t, err)
	require.Contains(t, err.Error(), `ENVX_INT must be an integer, got "forty"`)
	require.Contains(t, err.Error(), `ENVX_BOOL must be a boolean, got "maybe"`)
	require.Contains(t, err.Error(), `ENVX_DUR must be a duration, got "eight hours"`)

	type cfg struct {
		Name string `env:"APP_NAME" validate:"required"`
	}
	require.ErrorContains(t, l.Validate(cfg{}), "ENVX_INT must be an integer")
}

func TestValidateNamesVariables(t *testing.T) {
	t.Parallel()

	type cfg struct {
		Secret string `env:"APP_SECRET" validate:"required,min=8"`
		Mode   string `env:"APP_MODE" validate:"oneof=a b"`
		URL    string `env:"APP_URL" validate:"omitempty,url"`
	}

	require.NoError(t, Validate(cfg{Secret: "12345678", Mode: "a"}))

	err := Validate(cfg{Mode: "c", URL: "not a url"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "APP_SECRET is required")
	require.Contains(t, err.Error(), "APP_MODE must be one of [a b]")
	require.Contains(t, err.Error(), "APP_URL must be a URL")

	err = Validate(cfg{Secret: "short", Mode: "b"})
	require.ErrorContains(t, err, "APP_SECRET must be at least 8 characters")
}
