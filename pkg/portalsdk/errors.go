package portalsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error codes emitted by the portal.
const (
	ErrorCodeUnauthorized        = "unauthorized"
	ErrorCodeTokenExchangeFailed = "token_exchange_failed"
	ErrorCodeStateMismatch       = "state_mismatch"
	ErrorCodeAuthFailed          = "authorization_failed"
	ErrorCodeServerError         = "server_error"
	ErrorCodeRateLimitExceeded   = "rate_limit_exceeded"
	ErrorCodeForecastFailed      = "failed to fetch forecast"
)

// APIError is a non-2xx answer from the portal.
type APIError struct {
	StatusCode int
	Code       string
	Detail     string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("portal: %d %s: %s", e.StatusCode, e.Code, e.Detail)
	}
	return fmt.Sprintf("portal: %d %s", e.StatusCode, e.Code)
}

// IsUnauthorized reports whether err is a 401 from the portal.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// parseErrorResponse turns a non-2xx response body into an *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var env ErrorResponse
	if err := json.Unmarshal(body, &env); err == nil && env.Error != "" {
		return &APIError{StatusCode: resp.StatusCode, Code: env.Error, Detail: env.Detail}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       ErrorCodeServerError,
		Detail:     fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
