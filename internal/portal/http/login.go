package http

import (
	"net/http"

	"github.com/aussiebroadwan/portal/internal/portal/service"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/portalsdk"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

// LoginHandler starts the authorization code flow.
type LoginHandler struct {
	AuthFlow *service.AuthFlowService
	Cookies  *Cookies
	Metrics  *Metrics
}

// ServeHTTP redirects the browser to the identity provider and binds the
// login state to it.
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	redirect, err := h.AuthFlow.InitiateLogin(r.Context())
	if err != nil {
		log.Error("failed to start login", "error", err)
		h.Metrics.Logins.WithLabelValues("error").Inc()
		httpx.WriteError(w, http.StatusInternalServerError, portalsdk.ErrorCodeServerError, "")
		return
	}

	h.Cookies.SetLogin(w, redirect.State, redirect.ExpiresAt)
	h.Metrics.Logins.WithLabelValues("redirected").Inc()

	httpx.NoCache(w)
	http.Redirect(w, r, redirect.URL, http.StatusFound)
}
