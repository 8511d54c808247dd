package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/portal/internal/portal/store"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/portalsdk"
)

// Pinger is satisfied by *idp.Client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyzHandler reports 503 while the store or the identity provider's key
// set is unreachable. A nil provider counts as unreachable.
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	provider Pinger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &portalsdk.HealthChecks{
			Store:            "ok",
			IdentityProvider: "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Store = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		switch {
		case provider == nil:
			checks.IdentityProvider = "error: not configured"
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		default:
			if err := provider.Ping(r.Context()); err != nil {
				checks.IdentityProvider = "error: " + err.Error()
				overallStatus = "degraded"
				statusCode = http.StatusServiceUnavailable
			}
		}

		httpx.WriteJSON(w, statusCode, portalsdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
