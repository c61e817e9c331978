package notification

import (
	"embed"
	"log/slog"
)

//go:embed templates/*
var templateFiles embed.FS

func loadTemplate(filename string) string {
	content, err := templateFiles.ReadFile(filename)
	if err != nil {
		slog.Error("Error reading template file!", "err", err, "filename", filename)
		return ""
	}
	return string(content)
}

// NotificationManagerOption is a function that configures a NotificationManager
type NotificationManagerOption func(*NotificationManager) error

// WithSMTP adds an email notifier with the provided SMTP configuration
func WithSMTP(config SMTPConfig) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		emailNotifier, err := NewEmailNotifier(config)
		if err != nil {
			return err
		}
		nm.RegisterNotifier(EmailSystem, emailNotifier)
		return nil
	}
}

// WithNotifier registers an arbitrary notifier, typically a MockNotifier in tests
func WithNotifier(system NotificationSystem, notifier Notifier) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		nm.RegisterNotifier(system, notifier)
		return nil
	}
}

// WithEmailVerificationTemplate registers the email verification template
func WithEmailVerificationTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		return nm.RegisterNotification(EmailVerificationNotice, EmailSystem, NoticeTemplate{
			Subject: "Verify Your Email Address",
			Text:    loadTemplate("templates/email/email_verification.txt"),
			Html:    loadTemplate("templates/email/email_verification.html"),
		})
	}
}

// WithIdentityDecisionTemplate registers the template sent when an admin
// approves or rejects an identity verification
func WithIdentityDecisionTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		return nm.RegisterNotification(IdentityVerificationDecided, EmailSystem, NoticeTemplate{
			Subject: "Your Identity Verification",
			Html:    loadTemplate("templates/email/identity_verification_decided.html"),
		})
	}
}

// WithDefaultTemplates registers all default notification templates
func WithDefaultTemplates() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		options := []NotificationManagerOption{
			WithEmailVerificationTemplate(),
			WithIdentityDecisionTemplate(),
		}

		for _, opt := range options {
			if err := opt(nm); err != nil {
				return err
			}
		}

		return nil
	}
}

// NewNotificationManagerWithOptions creates a new notification manager with the provided options
func NewNotificationManagerWithOptions(baseUrl string, opts ...NotificationManagerOption) (*NotificationManager, error) {
	notificationManager := NewNotificationManager(baseUrl)

	for _, opt := range opts {
		if err := opt(notificationManager); err != nil {
			return nil, err
		}
	}

	return notificationManager, nil
}
