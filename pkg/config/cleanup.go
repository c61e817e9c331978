package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// CleanupConfig controls the scheduled sweep of unverified identities and expired records
type CleanupConfig struct {
	Enabled  bool          `env:"CLEANUP_ENABLED" env-default:"true"`
	DaysOld  int           `env:"CLEANUP_DAYS_OLD" env-default:"7"`
	Cron     string        `env:"CLEANUP_CRON" env-default:"0 2 * * *"`
	Timezone string        `env:"CLEANUP_TIMEZONE" env-default:"UTC"`
	Timeout  time.Duration `env:"CLEANUP_TIMEOUT" env-default:"5m"`
}

// Location resolves Timezone
func (c CleanupConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Validate checks the cleanup configuration. The schedule is checked even
// when disabled since the scheduler still serves status and manual runs.
func (c CleanupConfig) Validate() ValidationErrors {
	errs := CollectErrors(
		RequireNonNegative("CLEANUP_DAYS_OLD", c.DaysOld),
		RequirePositiveDuration("CLEANUP_TIMEOUT", c.Timeout),
	)
	if _, err := cron.ParseStandard(c.Cron); err != nil {
		errs = append(errs, ValidationError{Field: "CLEANUP_CRON", Message: fmt.Sprintf("invalid cron expression: %v", err)})
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, ValidationError{Field: "CLEANUP_TIMEZONE", Message: fmt.Sprintf("unknown timezone: %v", err)})
	}
	return errs
}
