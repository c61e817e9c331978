package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-verification/pkg/audit"
	cleanupapi "github.com/tendant/simple-verification/pkg/cleanup/api"
	"github.com/tendant/simple-verification/pkg/client"
	pkgconfig "github.com/tendant/simple-verification/pkg/config"
	emailverificationapi "github.com/tendant/simple-verification/pkg/emailverification/api"
	identityverificationapi "github.com/tendant/simple-verification/pkg/identityverification/api"
	"github.com/tendant/simple-verification/pkg/ratelimit"
)

// Config holds the handles and middleware the routes are built from
type Config struct {
	Prefix pkgconfig.PrefixConfig

	EmailVerificationHandle    *emailverificationapi.Handle
	IdentityVerificationHandle *identityverificationapi.Handle
	CleanupHandle              *cleanupapi.Handle

	// AdminAuth verifies bearer tokens on the admin groups
	AdminAuth *jwtauth.JWTAuth
	// AdminRoles defaults to "admin"
	AdminRoles []string

	// Audit records admin calls. Optional.
	Audit *audit.Middleware
	// RateLimiter guards the public group. Optional.
	RateLimiter *ratelimit.Middleware
	// Metrics is served on /metrics when set
	Metrics http.Handler
	CORS    pkgconfig.CORSConfig
	// TrustProxyHeaders rewrites RemoteAddr from forwarding headers
	TrustProxyHeaders bool
}

// NewRouter returns a mux with the standard middleware, health and metrics
// endpoints, and every verification route mounted
func NewRouter(cfg Config) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	if len(cfg.CORS.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           cfg.CORS.MaxAge,
		}))
	}

	app.RegisterHealthzRoutes(r)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	SetupRoutes(r, cfg)
	return r
}

// SetupRoutes mounts the verification routes on router. A handle left nil,
// or an empty prefix, skips its group.
func SetupRoutes(router chi.Router, cfg Config) {
	if cfg.EmailVerificationHandle != nil && cfg.Prefix.Verification != "" {
		router.Route(cfg.Prefix.Verification, func(r chi.Router) {
			if cfg.RateLimiter != nil {
				r.Use(cfg.RateLimiter.Handler)
			}
			r.Mount("/email", emailverificationapi.Handler(cfg.EmailVerificationHandle))
		})
	}

	adminVerification := cfg.IdentityVerificationHandle != nil || cfg.EmailVerificationHandle != nil
	if adminVerification && cfg.Prefix.AdminVerification != "" {
		router.Route(cfg.Prefix.AdminVerification, func(r chi.Router) {
			r.Use(client.AdminOnly(cfg.AdminAuth, cfg.AdminRoles...))
			if cfg.Audit != nil {
				r.Use(cfg.Audit.Handler)
			}
			if cfg.IdentityVerificationHandle != nil {
				r.Mount("/identity", identityverificationapi.Handler(cfg.IdentityVerificationHandle))
			}
			if cfg.EmailVerificationHandle != nil {
				r.Mount("/email", emailverificationapi.AdminHandler(cfg.EmailVerificationHandle))
			}
		})
	}

	if cfg.CleanupHandle != nil && cfg.Prefix.AdminCleanup != "" {
		router.Route(cfg.Prefix.AdminCleanup, func(r chi.Router) {
			r.Use(client.AdminOnly(cfg.AdminAuth, cfg.AdminRoles...))
			if cfg.Audit != nil {
				r.Use(cfg.Audit.Handler)
			}
			r.Mount("/", cleanupapi.Handler(cfg.CleanupHandle))
		})
	}
}
