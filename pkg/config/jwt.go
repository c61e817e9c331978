package config

import (
	"time"
)

const defaultJWTSecret = "very-secure-jwt-secret"

// JWTConfig holds the settings used to sign and verify admin bearer tokens
type JWTConfig struct {
	Secret           string        `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer           string        `env:"JWT_ISSUER" env-default:"simple-verification"`
	Audience         string        `env:"JWT_AUDIENCE" env-default:"simple-verification"`
	AdminTokenExpiry time.Duration `env:"ADMIN_TOKEN_EXPIRY" env-default:"24h"`
	// BootstrapToken prints a freshly minted admin token at startup.
	BootstrapToken bool `env:"ADMIN_BOOTSTRAP_TOKEN" env-default:"false"`
}

// UsesDefaultSecret reports whether JWT_SECRET was left at its shipped value
func (j JWTConfig) UsesDefaultSecret() bool {
	return j.Secret == defaultJWTSecret
}

// Validate checks the JWT configuration. The default secret is rejected in production.
func (j JWTConfig) Validate(env Environment) ValidationErrors {
	errs := CollectErrors(
		RequireMinLength("JWT_SECRET", j.Secret, 16),
		RequireNonEmpty("JWT_ISSUER", j.Issuer),
		RequirePositiveDuration("ADMIN_TOKEN_EXPIRY", j.AdminTokenExpiry),
	)
	if env == Production && j.UsesDefaultSecret() {
		errs = append(errs, ValidationError{Field: "JWT_SECRET", Message: "must be changed from the default in production"})
	}
	return errs
}
