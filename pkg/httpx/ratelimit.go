package httpx

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/portal/pkg/envx"
	"github.com/aussiebroadwan/portal/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimit is a token bucket refilled with Requests tokens every Window.
type RateLimit struct {
	Requests int
	Window   time.Duration
	Burst    int

	// OnReject, when set, is called for every request turned away.
	OnReject func(*http.Request)
}

func (l RateLimit) perSecond() rate.Limit {
	return rate.Limit(float64(l.Requests) / l.Window.Seconds())
}

// RateLimits groups the per route class budgets.
type RateLimits struct {
	// Auth covers /login and /callback, each of which costs an IdP round trip.
	Auth RateLimit
	// Session covers cookie authenticated reads and the forecast relay.
	Session RateLimit
	// Public covers health, readiness and metrics probes.
	Public RateLimit
}

// DefaultRateLimits are the budgets used when nothing is overridden.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Auth:    RateLimit{Requests: 20, Window: time.Minute, Burst: 10},
		Session: RateLimit{Requests: 120, Window: time.Minute, Burst: 60},
		Public:  RateLimit{Requests: 1000, Window: time.Minute, Burst: 1000},
	}
}

// LoadRateLimits applies RATELIMIT_{AUTH,SESSION,PUBLIC}_{REQUESTS,WINDOW,BURST}
// overrides on top of DefaultRateLimits. Malformed or non-positive values are
// recorded on env.
func LoadRateLimits(env *envx.Loader) RateLimits {
	l := DefaultRateLimits()
	l.Auth = loadRateLimit(env, "AUTH", l.Auth)
	l.Session = loadRateLimit(env, "SESSION", l.Session)
	l.Public = loadRateLimit(env, "PUBLIC", l.Public)
	return l
}

func loadRateLimit(env *envx.Loader, class string, def RateLimit) RateLimit {
	prefix := "RATELIMIT_" + class + "_"
	out := RateLimit{
		Requests: env.Int(prefix+"REQUESTS", def.Requests),
		Window:   env.Duration(prefix+"WINDOW", def.Window),
		Burst:    env.Int(prefix+"BURST", def.Burst),
	}
	if out.Requests <= 0 {
		env.Reject(prefix+"REQUESTS", "positive", strconv.Itoa(out.Requests))
		out.Requests = def.Requests
	}
	if out.Window <= 0 {
		env.Reject(prefix+"WINDOW", "positive", out.Window.String())
		out.Window = def.Window
	}
	if out.Burst <= 0 {
		env.Reject(prefix+"BURST", "positive", strconv.Itoa(out.Burst))
		out.Burst = def.Burst
	}
	return out
}

// ClientIP returns the address a request is attributed to. The first
// X-Forwarded-For hop wins, then X-Real-IP, then the peer address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// buckets holds one limiter per client key. Keys idle for longer than
// idleAfter are evicted on the next sweep.
type buckets struct {
	limit     RateLimit
	idleAfter time.Duration

	mu        sync.Mutex
	byKey     map[string]*bucket
	nextSweep time.Time
}

func newBuckets(limit RateLimit) *buckets {
	idle := max(limit.Window, 5*time.Minute)
	return &buckets{
		limit:     limit,
		idleAfter: idle,
		byKey:     make(map[string]*bucket),
		nextSweep: time.Now().Add(idle),
	}
}

func (b *buckets) get(key string, now time.Time) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()

	if now.After(b.nextSweep) {
		for k, v := range b.byKey {
			if now.Sub(v.lastSeen) > b.idleAfter {
				delete(b.byKey, k)
			}
		}
		b.nextSweep = now.Add(b.idleAfter)
	}

	bk, ok := b.byKey[key]
	if !ok {
		bk = &bucket{limiter: rate.NewLimiter(b.limit.perSecond(), b.limit.Burst)}
		b.byKey[key] = bk
	}
	bk.lastSeen = now
	return bk.limiter
}

// RateLimitBy throttles requests grouped by key. Requests for which key
// returns "" pass through unthrottled.
func RateLimitBy(limit RateLimit, key func(*http.Request) string) Middleware {
	b := newBuckets(limit)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				slogx.FromContext(r.Context()).Warn("rate limit: no client key, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			now := time.Now()
			limiter := b.get(k, now)
			if limiter.AllowN(now, 1) {
				next.ServeHTTP(w, r)
				return
			}

			res := limiter.ReserveN(now, 1)
			wait := res.DelayFrom(now)
			res.CancelAt(now)
			retryAfter := max(int(wait.Round(time.Second).Seconds()), 1)

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
			w.Header().Set("X-RateLimit-Window", limit.Window.String())

			slogx.FromContext(r.Context()).Warn("rate limit exceeded",
				"client", k,
				"path", r.URL.Path,
				"retry_after", retryAfter,
			)
			if limit.OnReject != nil {
				limit.OnReject(r)
			}

			WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "")
		})
	}
}

// RateLimitByIP throttles per ClientIP.
func RateLimitByIP(limit RateLimit) Middleware {
	return RateLimitBy(limit, ClientIP)
}
