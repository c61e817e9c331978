package config

import "time"

// VerificationConfig holds the token lifetimes and link settings of both verification flows
type VerificationConfig struct {
	EmailTokenExpiry    time.Duration `env:"EMAIL_TOKEN_EXPIRY" env-default:"15m"`
	IdentityTokenExpiry time.Duration `env:"IDENTITY_TOKEN_EXPIRY" env-default:"24h"`
	IdentityMaxAttempts int           `env:"IDENTITY_MAX_ATTEMPTS" env-default:"3"`
	BaseURL             string        `env:"VERIFICATION_BASE_URL" env-default:"http://localhost:3000"`
	VerifyPath          string        `env:"VERIFICATION_VERIFY_PATH" env-default:"/verify-email"`
}

// Validate checks the verification configuration
func (v VerificationConfig) Validate() ValidationErrors {
	return CollectErrors(
		RequirePositiveDuration("EMAIL_TOKEN_EXPIRY", v.EmailTokenExpiry),
		RequirePositiveDuration("IDENTITY_TOKEN_EXPIRY", v.IdentityTokenExpiry),
		RequireInRange("IDENTITY_MAX_ATTEMPTS", v.IdentityMaxAttempts, 1, 100),
		RequireValidURL("VERIFICATION_BASE_URL", v.BaseURL),
	)
}
