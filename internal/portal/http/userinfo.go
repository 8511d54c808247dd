package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/portal/internal/portal/service"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/portalsdk"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

type UserinfoHandler struct {
	AuthFlow *service.AuthFlowService
	Cookies  *Cookies
}

// ServeHTTP returns the profile stored for the caller's session.
func (h *UserinfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	profile, err := h.AuthFlow.GetUserinfo(ctx, h.Cookies.SessionID(r))
	if errors.Is(err, service.ErrUnauthorized) {
		httpx.WriteError(w, http.StatusUnauthorized, portalsdk.ErrorCodeUnauthorized, "")
		return
	}
	if err != nil {
		slogx.FromContext(ctx).Error("failed to load session", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, portalsdk.ErrorCodeServerError, "")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, profile)
}
