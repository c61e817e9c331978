package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// PersistenceConfig selects where identities and verification records live
type PersistenceConfig struct {
	Type PersistenceType `env:"PERSISTENCE_TYPE" env-default:"postgres"`
	// DataDir makes the memory backend persist a JSON snapshot. Empty keeps it in memory only.
	DataDir string `env:"DATA_DIR"`
}

// Validate checks the persistence configuration
func (p PersistenceConfig) Validate() ValidationErrors {
	return CollectErrors(
		RequireOneOf("PERSISTENCE_TYPE", string(p.Type), []string{string(PersistencePostgres), string(PersistenceMemory)}),
	)
}

// CORSConfig holds the allowed origins for browser clients
type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:3000"`
	MaxAge         int      `env:"CORS_MAX_AGE" env-default:"300"`
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Addr            string        `env:"HTTP_ADDR" env-default:"0.0.0.0:4000"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"30s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"20s"`
	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool `env:"HTTP_TRUST_PROXY_HEADERS" env-default:"false"`
}

// Validate checks the server configuration
func (s ServerConfig) Validate() ValidationErrors {
	return CollectErrors(
		RequireNonEmpty("HTTP_ADDR", s.Addr),
		RequirePositiveDuration("HTTP_READ_TIMEOUT", s.ReadTimeout),
		RequirePositiveDuration("HTTP_WRITE_TIMEOUT", s.WriteTimeout),
		RequirePositiveDuration("HTTP_SHUTDOWN_TIMEOUT", s.ShutdownTimeout),
	)
}

// Config is everything cmd/verifyd reads from the environment
type Config struct {
	AppEnv       string `env:"APP_ENV" env-default:"development"`
	Server       ServerConfig
	Persistence  PersistenceConfig
	Database     DatabaseConfig
	Email        EmailConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	Prefix       PrefixConfig
	Verification VerificationConfig
	Cleanup      CleanupConfig
	Log          LogConfig
	CORS         CORSConfig
}

// Environment returns the parsed APP_ENV
func (c Config) Environment() Environment {
	return ParseEnvironment(c.AppEnv)
}

// Load reads Config from the process environment. Call godotenv first to pick up a .env file.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every section and reports all problems at once.
// The database section is skipped for the memory backend.
func (c Config) Validate() error {
	validators := []Validator{
		c.Server.Validate,
		c.Persistence.Validate,
		c.Email.Validate,
		func() ValidationErrors { return c.JWT.Validate(c.Environment()) },
		c.RateLimit.Validate,
		c.Prefix.Validate,
		c.Verification.Validate,
		c.Cleanup.Validate,
		c.Log.Validate,
	}
	if c.Persistence.Type == PersistencePostgres {
		validators = append(validators, c.Database.Validate)
	}
	return Validate(validators...)
}
