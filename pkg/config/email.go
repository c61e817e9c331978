package config

import (
	"time"

	"github.com/tendant/simple-verification/pkg/notification"
)

// EmailConfig holds SMTP email configuration
type EmailConfig struct {
	Host     string        `env:"EMAIL_HOST" env-default:"localhost"`
	Port     uint16        `env:"EMAIL_PORT" env-default:"1025"`
	Username string        `env:"EMAIL_USERNAME" env-default:"noreply@example.com"`
	Password string        `env:"EMAIL_PASSWORD" env-default:"pwd"`
	From     string        `env:"EMAIL_FROM" env-default:"noreply@example.com"`
	FromName string        `env:"EMAIL_FROM_NAME" env-default:"Simple Verification"`
	TLS      bool          `env:"EMAIL_TLS" env-default:"false"`
	Timeout  time.Duration `env:"EMAIL_TIMEOUT" env-default:"30s"`
	// Disabled skips SMTP entirely; messages are only logged.
	Disabled bool `env:"EMAIL_DISABLED" env-default:"false"`
}

// ToSMTPConfig converts the config to a notification.SMTPConfig
func (e EmailConfig) ToSMTPConfig() notification.SMTPConfig {
	return notification.SMTPConfig{
		Host:     e.Host,
		Port:     int(e.Port),
		Username: e.Username,
		Password: e.Password,
		From:     e.From,
		FromName: e.FromName,
		TLS:      e.TLS,
		Timeout:  e.Timeout,
	}
}

// Validate checks the email configuration. Nothing is checked when disabled.
func (e EmailConfig) Validate() ValidationErrors {
	if e.Disabled {
		return nil
	}
	return CollectErrors(
		RequireNonEmpty("EMAIL_HOST", e.Host),
		RequireValidPort("EMAIL_PORT", e.Port),
		RequireValidEmail("EMAIL_FROM", e.From),
		RequirePositiveDuration("EMAIL_TIMEOUT", e.Timeout),
	)
}
