// Package envx reads typed settings from the environment and validates the
// resulting config structs. Struct fields name their variable with an `env`
// tag so validation errors point at what the operator has to fix.
package envx

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Loader reads typed settings and remembers every value it could not parse,
// so a typo fails startup instead of quietly becoming the default. Unset and
// empty variables take the default.
type Loader struct {
	errs []string
}

// Reject records that key held got where want was expected.
func (l *Loader) Reject(key, want, got string) {
	l.errs = append(l.errs, fmt.Sprintf("%s must be %s, got %q", key, want, got))
}

func (l *Loader) String(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (l *Loader) Int(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		l.Reject(key, "an integer", value)
		return defaultValue
	}
	return n
}

func (l *Loader) Bool(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		l.Reject(key, "a boolean", value)
		return defaultValue
	}
	return b
}

// Duration accepts Go durations ("90s", "1h30m"). Bare integers are minutes.
func (l *Loader) Duration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}

	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	l.Reject(key, "a duration", value)
	return defaultValue
}

// List splits a comma separated variable, falling back to defaultValue when unset.
func (l *Loader) List(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Err reports every value that failed to parse, or nil.
func (l *Loader) Err() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(l.errs, "; "))
}

// Validate returns the parse failures seen so far, or else the result of
// running cfg's `validate` tags.
func (l *Loader) Validate(cfg any) error {
	if err := l.Err(); err != nil {
		return err
	}
	return Validate(cfg)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("env"); name != "" && name != "-" {
			return name
		}
		return fld.Name
	})
	return v
}

// Validate runs the struct's `validate` tags. The error names each offending
// environment variable.
func Validate(cfg any) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required", "required_if", "required_without":
		return name + " is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", name, fe.Param(), fmt.Sprint(fe.Value()))
	case "url", "http_url":
		return fmt.Sprintf("%s must be a URL, got %q", name, fmt.Sprint(fe.Value()))
	default:
		return fmt.Sprintf("%s failed %q validation", name, fe.Tag())
	}
}
