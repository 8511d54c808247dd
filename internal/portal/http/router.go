package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/portal/internal/portal/service"
	"github.com/aussiebroadwan/portal/internal/portal/store"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/relay"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store
	metrics      *Metrics

	AuthFlow   *service.AuthFlowService
	Cookies    *Cookies
	Forecast   *relay.Relay
	LandingURL string
	RateLimits httpx.RateLimits

	// IdP is pinged by /readyz.
	IdP Pinger
}

func NewRouter(
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
	cors httpx.CORSConfig,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		metrics:      NewMetrics(),
		RateLimits:   httpx.DefaultRateLimits(),
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.CORS(cors),
	}

	return r
}

// Metrics exposes the router's collectors.
func (r *Router) Metrics() *Metrics { return r.metrics }

func (r *Router) ApplyRoutes() {
	r.RateLimits.Auth.OnReject = r.metrics.rejected("auth")
	r.RateLimits.Session.OnReject = r.metrics.rejected("session")
	r.RateLimits.Public.OnReject = r.metrics.rejected("public")

	r.registerAuth()
	r.registerSession()
	r.registerForecast()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	login := &LoginHandler{AuthFlow: r.AuthFlow, Cookies: r.Cookies, Metrics: r.metrics}
	callback := &CallbackHandler{
		AuthFlow:   r.AuthFlow,
		Cookies:    r.Cookies,
		Metrics:    r.metrics,
		LandingURL: r.LandingURL,
	}

	// Both cost a round trip to the identity provider.
	r.Mux.Handle("GET /login",
		httpx.Chain(login, httpx.RateLimitByIP(r.RateLimits.Auth)),
	)
	r.Mux.Handle("GET /callback",
		httpx.Chain(callback, httpx.RateLimitByIP(r.RateLimits.Auth)),
	)
}

func (r *Router) registerSession() {
	userinfo := &UserinfoHandler{AuthFlow: r.AuthFlow, Cookies: r.Cookies}
	logout := &LogoutHandler{AuthFlow: r.AuthFlow, Cookies: r.Cookies, Metrics: r.metrics}

	r.Mux.Handle("GET /userinfo",
		httpx.Chain(userinfo, httpx.RateLimitByIP(r.RateLimits.Session)),
	)
	r.Mux.Handle("GET /logout",
		httpx.Chain(logout, httpx.RateLimitByIP(r.RateLimits.Session)),
	)
}

func (r *Router) registerForecast() {
	h := &ForecastHandler{Relay: r.Forecast, Metrics: r.metrics}
	r.Mux.Handle("GET /forecast",
		httpx.Chain(h, httpx.RateLimitByIP(r.RateLimits.Session)),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /health",
		httpx.Chain(HealthHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.RateLimits.Public),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.IdP),
			httpx.RateLimitByIP(r.RateLimits.Public),
		),
	)
	r.Mux.Handle("GET /metrics",
		httpx.Chain(r.metrics.Handler(),
			httpx.RateLimitByIP(r.RateLimits.Public),
		),
	)
}
