package http

import (
	"net/http"

	"github.com/aussiebroadwan/portal/internal/portal/service"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/portalsdk"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

type LogoutHandler struct {
	AuthFlow *service.AuthFlowService
	Cookies  *Cookies
	Metrics  *Metrics
}

// ServeHTTP drops the caller's session and hands the browser to the
// identity provider's logout endpoint. Calling it without a session is fine.
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	logoutURL, err := h.AuthFlow.Logout(ctx, h.Cookies.SessionID(r))
	if err != nil {
		slogx.FromContext(ctx).Error("failed to remove session", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, portalsdk.ErrorCodeServerError, "")
		return
	}

	h.Cookies.ClearSession(w)
	h.Metrics.Logouts.Inc()

	httpx.NoCache(w)
	http.Redirect(w, r, logoutURL, http.StatusFound)
}
