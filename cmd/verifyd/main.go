// Command verifyd serves the email and identity verification API and runs
// the scheduled cleanup sweep.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/jwtauth/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/simple-verification/pkg/audit"
	"github.com/tendant/simple-verification/pkg/bootstrap"
	cleanupapi "github.com/tendant/simple-verification/pkg/cleanup/api"
	"github.com/tendant/simple-verification/pkg/config"
	emailverificationapi "github.com/tendant/simple-verification/pkg/emailverification/api"
	identityverificationapi "github.com/tendant/simple-verification/pkg/identityverification/api"
	"github.com/tendant/simple-verification/pkg/ratelimit"
	"github.com/tendant/simple-verification/pkg/router"
	"github.com/tendant/simple-verification/pkg/tokengenerator"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		slog.Error("verifyd stopped", "err", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to read .env file", "err", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(cfg.Log.NewLogger(os.Stdout))
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.JWT.UsesDefaultSecret() {
		slog.Warn("JWT_SECRET is the built-in default; set it before exposing the service")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := bootstrap.OpenRepositories(ctx, cfg.Persistence, cfg.Database)
	if err != nil {
		return err
	}
	defer repos.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc, err := bootstrap.NewServices(cfg, repos, reg)
	if err != nil {
		return err
	}

	tokenGen := tokengenerator.NewJwtTokenGenerator(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience)
	adminToken, err := bootstrap.BootstrapAdminToken(bootstrap.AdminBootstrapConfig{
		Enabled:       cfg.JWT.BootstrapToken,
		Expiry:        cfg.JWT.AdminTokenExpiry,
		Generator:     tokenGen,
		DefaultSecret: cfg.JWT.UsesDefaultSecret(),
	})
	if err != nil {
		return err
	}
	bootstrap.PrintBootstrapResult(os.Stdout, adminToken)

	var limiter *ratelimit.Middleware
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewMiddleware(cfg.RateLimit, reg)
		defer limiter.Close()
	}

	handler := router.NewRouter(router.Config{
		Prefix:                     cfg.Prefix,
		EmailVerificationHandle:    emailverificationapi.NewHandle(svc.EmailVerification),
		IdentityVerificationHandle: identityverificationapi.NewHandle(svc.IdentityVerification),
		CleanupHandle:              cleanupapi.NewHandle(svc.Cleanup, svc.Scheduler),
		AdminAuth:                  jwtauth.New("HS256", []byte(cfg.JWT.Secret), nil),
		Audit:                      audit.NewMiddleware(audit.Config{Source: "verifyd"}),
		RateLimiter:                limiter,
		Metrics:                    promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		CORS:                       cfg.CORS,
		TrustProxyHeaders:          cfg.Server.TrustProxyHeaders,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if cfg.Cleanup.Enabled {
		svc.Scheduler.Start()
		defer svc.Scheduler.Stop()
	} else {
		slog.Info("Scheduled cleanup disabled")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Verification service listening", "addr", srv.Addr,
			"persistence", cfg.Persistence.Type, "env", cfg.Environment())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
