package config

import "time"

// RateLimitConfig contains the per-IP limits applied to the public verification routes.
//
// Environment variables:
//   - RATELIMIT_ENABLED: enable per-IP limiting (default: true)
//   - RATELIMIT_PER_IP_RPS: sustained requests per second per IP (default: 0.5)
//   - RATELIMIT_PER_IP_BURST: bucket size per IP (default: 10)
//   - RATELIMIT_IDLE_TTL: how long an idle IP keeps its bucket (default: 10m)
//   - RATELIMIT_INCLUDE_HEADERS: add X-RateLimit-* headers (default: true)
type RateLimitConfig struct {
	Enabled        bool          `env:"RATELIMIT_ENABLED" env-default:"true"`
	PerIPRate      float64       `env:"RATELIMIT_PER_IP_RPS" env-default:"0.5"`
	PerIPBurst     int           `env:"RATELIMIT_PER_IP_BURST" env-default:"10"`
	IdleTTL        time.Duration `env:"RATELIMIT_IDLE_TTL" env-default:"10m"`
	IncludeHeaders bool          `env:"RATELIMIT_INCLUDE_HEADERS" env-default:"true"`
}

// DefaultRateLimitConfig returns a RateLimitConfig with the same values as the env defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:        true,
		PerIPRate:      0.5,
		PerIPBurst:     10,
		IdleTTL:        10 * time.Minute,
		IncludeHeaders: true,
	}
}

// Validate checks the rate limit configuration
func (r RateLimitConfig) Validate() ValidationErrors {
	if !r.Enabled {
		return nil
	}
	errs := CollectErrors(
		RequirePositive("RATELIMIT_PER_IP_BURST", r.PerIPBurst),
		RequirePositiveDuration("RATELIMIT_IDLE_TTL", r.IdleTTL),
	)
	if r.PerIPRate <= 0 {
		errs = append(errs, ValidationError{Field: "RATELIMIT_PER_IP_RPS", Message: "must be positive"})
	}
	return errs
}
