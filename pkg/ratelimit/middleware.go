package ratelimit

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tendant/simple-verification/pkg/common"
	"github.com/tendant/simple-verification/pkg/config"
	apperrors "github.com/tendant/simple-verification/pkg/errors"
)

// Middleware enforces the per-IP limit on the public verification routes
type Middleware struct {
	config   config.RateLimitConfig
	limiter  *RateLimiter
	rejected prometheus.Counter
}

// NewMiddleware creates the middleware. reg may be nil to skip metrics.
func NewMiddleware(cfg config.RateLimitConfig, reg prometheus.Registerer, opts ...Option) *Middleware {
	m := &Middleware{
		config:  cfg,
		limiter: NewRateLimiter(cfg.PerIPRate, cfg.PerIPBurst, cfg.IdleTTL, opts...),
	}
	if reg != nil {
		m.rejected = promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "verification_ratelimit_rejected_total",
			Help: "Requests rejected by the per-IP rate limiter",
		})
	}
	return m
}

// Handler returns the rate limiting middleware handler
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.config.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		ip := ClientIP(r)
		ok, retryAfter := m.limiter.Take(ip)
		if !ok {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			m.rateLimitExceeded(w, r, ip, seconds)
			return
		}

		if m.config.IncludeHeaders {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.config.PerIPBurst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(m.limiter.Tokens(ip))))
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) rateLimitExceeded(w http.ResponseWriter, r *http.Request, ip string, retryAfter int) {
	slog.Warn("Rate limit exceeded", "ip", ip, "path", r.URL.Path, "method", r.Method)
	if m.rejected != nil {
		m.rejected.Inc()
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	common.RenderError(w, r, apperrors.RateLimitExceeded(strconv.Itoa(retryAfter)+"s"))
}

// Close stops the limiter's janitor
func (m *Middleware) Close() {
	m.limiter.Close()
}

// GetStats returns statistics about the per-IP limiter
func (m *Middleware) GetStats() Stats {
	return m.limiter.GetStats()
}

// ClientIP keys requests by the connection address. Forwarding headers are
// not read here: the router rewrites RemoteAddr from them only when proxy
// headers are trusted.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
