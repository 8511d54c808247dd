package http

import (
	"net/http"

	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/portalsdk"
	"github.com/aussiebroadwan/portal/pkg/relay"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

type ForecastHandler struct {
	Relay   *relay.Relay
	Metrics *Metrics
}

// ServeHTTP relays the forecast upstream verbatim. Upstream failures are a
// 502 whose detail names the cause.
func (h *ForecastHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.Relay.FetchAndRelay(r.Context(), w); err != nil {
		slogx.FromContext(r.Context()).Warn("forecast relay failed", "error", err)
		h.Metrics.ForecastRuns.WithLabelValues("error").Inc()
		httpx.WriteError(w, http.StatusBadGateway, portalsdk.ErrorCodeForecastFailed, err.Error())
		return
	}
	h.Metrics.ForecastRuns.WithLabelValues("success").Inc()
}
