package bootstrap

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/tendant/simple-verification/pkg/tokengenerator"
)

// DefaultAdminSubject is the subject of the bootstrap admin token
const DefaultAdminSubject = "bootstrap-admin"

// AdminBootstrapConfig contains what is needed to mint the first admin token
type AdminBootstrapConfig struct {
	Enabled   bool
	Subject   string
	Expiry    time.Duration
	Generator *tokengenerator.JwtTokenGenerator
	// DefaultSecret marks a JWT secret left at its shipped value
	DefaultSecret bool
}

// AdminBootstrapResult contains the minted token, if any
type AdminBootstrapResult struct {
	Created       bool
	Subject       string
	Token         string
	ExpiresAt     time.Time
	DefaultSecret bool
}

// BootstrapAdminToken mints an admin bearer token so an operator can reach
// the admin routes before any other tooling is set up. Nothing happens when
// the config is disabled.
func BootstrapAdminToken(cfg AdminBootstrapConfig) (*AdminBootstrapResult, error) {
	if !cfg.Enabled {
		return &AdminBootstrapResult{Created: false}, nil
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("invalid bootstrap configuration: token generator is required")
	}

	subject := cfg.Subject
	if subject == "" {
		subject = DefaultAdminSubject
	}

	token, expiresAt, err := cfg.Generator.GenerateAdminToken(subject, cfg.Expiry)
	if err != nil {
		return nil, fmt.Errorf("failed to mint admin token: %w", err)
	}

	slog.Info("Admin bootstrap token minted", "subject", subject, "expires_at", expiresAt)
	return &AdminBootstrapResult{
		Created:       true,
		Subject:       subject,
		Token:         token,
		ExpiresAt:     expiresAt,
		DefaultSecret: cfg.DefaultSecret,
	}, nil
}
