// Package weather is a single purpose function that forwards a forecast from
// a third party weather API to browsers, answering CORS preflights itself.
package weather

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/relay"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

// ErrInternal is the only failure body callers ever see.
const ErrInternal = "An internal server error occurred."

type Handler struct {
	cfg    Config
	client *http.Client
}

// NewHandler builds the function. A nil client gets a default one; the
// configured timeout applies either way.
func NewHandler(cfg Config, client *http.Client) *Handler {
	if client == nil {
		client = &http.Client{}
	}
	return &Handler{cfg: cfg, client: client}
}

func (h *Handler) setCORS(w http.ResponseWriter) {
	origin := h.cfg.AllowOrigin
	if origin == "" {
		origin = "*"
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", "OPTIONS,GET")
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.setCORS(w)

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodGet:
	default:
		w.Header().Set("Allow", "OPTIONS, GET")
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	log := slogx.FromContext(r.Context())

	if h.cfg.APIKey == "" {
		log.Error("weather API key is not configured", "variable", "WEATHER_API_KEY")
		httpx.WriteError(w, http.StatusInternalServerError, ErrInternal, "")
		return
	}

	upstream, err := h.upstreamURL()
	if err != nil {
		log.Error("invalid weather API URL", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, ErrInternal, "")
		return
	}

	rl, err := relay.New(relay.Config{URL: upstream, Timeout: h.cfg.Timeout}, h.client)
	if err != nil {
		log.Error("failed to build weather relay", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, ErrInternal, "")
		return
	}

	body, err := rl.Fetch(r.Context())
	if err != nil {
		// The upstream URL carries the API key, so only the cause is logged.
		var fe *relay.UpstreamFetchError
		if errors.As(err, &fe) {
			log.Error("weather API request failed", "status", fe.StatusCode, "cause", fe.Err)
		} else {
			log.Error("weather API request failed")
		}
		httpx.WriteError(w, http.StatusInternalServerError, ErrInternal, "")
		return
	}

	log.Debug("forecast relayed", "bytes", len(body))
	httpx.WriteRawJSON(w, http.StatusOK, body)
}

func (h *Handler) upstreamURL() (string, error) {
	u, err := url.Parse(h.cfg.APIURL)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("key", h.cfg.APIKey)
	q.Set("q", h.cfg.Location)
	q.Set("days", strconv.Itoa(h.cfg.Days))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
