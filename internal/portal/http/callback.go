package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/portal/internal/portal/idp"
	"github.com/aussiebroadwan/portal/internal/portal/service"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/portalsdk"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

// CallbackHandler completes a login at the identity provider's redirect.
type CallbackHandler struct {
	AuthFlow   *service.AuthFlowService
	Cookies    *Cookies
	Metrics    *Metrics
	LandingURL string
}

// ServeHTTP exchanges the code, stores the session, sets the session cookie
// and sends the browser to the landing page. Every failure is a JSON 400
// except store failures, which are 500.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	q := r.URL.Query()

	sess, err := h.AuthFlow.HandleCallback(ctx, service.CallbackRequest{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		BindingState:     h.Cookies.LoginState(r),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	})
	if err != nil {
		h.writeCallbackError(w, r, err)
		return
	}

	if err := h.Cookies.SetSession(w, sess); err != nil {
		log.Error("failed to issue session cookie", "error", err)
		if derr := h.AuthFlow.DiscardSession(ctx, sess.ID); derr != nil {
			log.Error("failed to discard unissued session", "error", derr)
		}
		h.Metrics.Callbacks.WithLabelValues("error").Inc()
		httpx.WriteError(w, http.StatusInternalServerError, portalsdk.ErrorCodeServerError, "")
		return
	}
	h.Cookies.ClearLogin(w)
	h.Metrics.Callbacks.WithLabelValues("success").Inc()

	httpx.NoCache(w)
	http.Redirect(w, r, h.LandingURL, http.StatusFound)
}

func (h *CallbackHandler) writeCallbackError(w http.ResponseWriter, r *http.Request, err error) {
	log := slogx.FromContext(r.Context())

	var (
		exErr *idp.TokenExchangeError
		afErr *service.AuthFailedError
	)

	switch {
	case errors.As(err, &exErr):
		log.Warn("token exchange failed", "status", exErr.StatusCode, "error", err)
		h.Metrics.Callbacks.WithLabelValues("token_exchange_failed").Inc()
		h.Cookies.ClearLogin(w)
		httpx.WriteError(w, http.StatusBadRequest, portalsdk.ErrorCodeTokenExchangeFailed, exErr.Detail())

	case errors.Is(err, service.ErrStateMismatch):
		h.Metrics.Callbacks.WithLabelValues("state_mismatch").Inc()
		httpx.WriteError(w, http.StatusBadRequest, portalsdk.ErrorCodeStateMismatch, "")

	case errors.As(err, &afErr):
		log.Info("authorization failed", "code", afErr.Code)
		h.Metrics.Callbacks.WithLabelValues("authorization_failed").Inc()
		h.Cookies.ClearLogin(w)
		httpx.WriteError(w, http.StatusBadRequest, portalsdk.ErrorCodeAuthFailed, afErr.Error())

	default:
		log.Error("callback failed", "error", err)
		h.Metrics.Callbacks.WithLabelValues("error").Inc()
		httpx.WriteError(w, http.StatusInternalServerError, portalsdk.ErrorCodeServerError, "")
	}
}
