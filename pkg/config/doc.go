// Package config loads and validates the settings of the verification service.
//
// Every section is a plain struct with cleanenv tags, read in one pass by Load:
//
//	_ = godotenv.Load()
//	cfg, err := config.Load()
//	if err != nil {
//		return err
//	}
//	if err := cfg.Validate(); err != nil {
//		return err // config.ValidationErrors lists every bad variable
//	}
//
// # Sections
//
//   - PersistenceConfig: PERSISTENCE_TYPE (postgres or memory) and DATA_DIR
//   - DatabaseConfig: PG_* connection settings
//   - EmailConfig: SMTP settings for verification mail
//   - JWTConfig: secret and lifetime of admin bearer tokens
//   - RateLimitConfig: per-IP limits on the public routes
//   - PrefixConfig: mount points of the route groups
//   - VerificationConfig: EMAIL_TOKEN_EXPIRY, IDENTITY_TOKEN_EXPIRY, IDENTITY_MAX_ATTEMPTS
//   - CleanupConfig: CLEANUP_DAYS_OLD, CLEANUP_CRON, CLEANUP_TIMEZONE
//   - LogConfig: LOG_LEVEL and LOG_FORMAT
//
// # Validation
//
// Each section exposes Validate returning ValidationErrors. The Require*
// helpers build those errors and CollectErrors drops the nil results:
//
//	func (d DatabaseConfig) Validate() ValidationErrors {
//		return CollectErrors(
//			RequireNonEmpty("PG_HOST", d.Host),
//			RequireValidPort("PG_PORT", d.Port),
//		)
//	}
package config
