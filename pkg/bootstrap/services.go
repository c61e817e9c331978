package bootstrap

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/simple-verification/pkg/cleanup"
	"github.com/tendant/simple-verification/pkg/config"
	"github.com/tendant/simple-verification/pkg/emailverification"
	"github.com/tendant/simple-verification/pkg/identityverification"
	"github.com/tendant/simple-verification/pkg/notification"
	"github.com/tendant/simple-verification/pkg/scheduler"
)

// Services is the wired verification stack
type Services struct {
	Notifications        *notification.NotificationManager
	EmailVerification    *emailverification.EmailVerificationService
	IdentityVerification *identityverification.IdentityVerificationService
	Cleanup              *cleanup.Engine
	Scheduler            *scheduler.Scheduler
}

// NewNotificationManager registers SMTP delivery, or the log notifier when email is disabled
func NewNotificationManager(cfg config.Config) (*notification.NotificationManager, error) {
	opts := []notification.NotificationManagerOption{notification.WithDefaultTemplates()}
	if cfg.Email.Disabled {
		opts = append(opts, notification.WithNotifier(notification.EmailSystem, notification.LogNotifier{}))
	} else {
		opts = append(opts, notification.WithSMTP(cfg.Email.ToSMTPConfig()))
	}

	nm, err := notification.NewNotificationManagerWithOptions(cfg.Verification.BaseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification manager: %w", err)
	}
	return nm, nil
}

// NewServices builds every service on top of repos. The scheduler is built
// but not started. reg may be nil to skip metrics.
func NewServices(cfg config.Config, repos *Repositories, reg prometheus.Registerer) (*Services, error) {
	nm, err := NewNotificationManager(cfg)
	if err != nil {
		return nil, err
	}

	emailSvc := emailverification.NewEmailVerificationService(
		repos.EmailVerifications,
		repos.Identities,
		emailverification.WithTokenExpiry(cfg.Verification.EmailTokenExpiry),
		emailverification.WithNotifier(nm),
		emailverification.WithBaseURL(cfg.Verification.BaseURL),
		emailverification.WithVerifyPath(cfg.Verification.VerifyPath),
	)

	identitySvc := identityverification.NewIdentityVerificationService(
		repos.IdentityVerifications,
		repos.Identities,
		identityverification.WithTokenExpiry(cfg.Verification.IdentityTokenExpiry),
		identityverification.WithMaxAttempts(cfg.Verification.IdentityMaxAttempts),
		identityverification.WithNotifier(nm),
	)

	engineOpts := []cleanup.Option{cleanup.WithDaysOld(cfg.Cleanup.DaysOld)}
	schedOpts := []scheduler.Option{
		scheduler.WithSpec(cfg.Cleanup.Cron),
		scheduler.WithTimeout(cfg.Cleanup.Timeout),
	}
	if reg != nil {
		engineOpts = append(engineOpts, cleanup.WithMetrics(cleanup.NewMetrics(reg)))
		schedOpts = append(schedOpts, scheduler.WithMetrics(scheduler.NewMetrics(reg)))
	}
	engine := cleanup.NewEngine(repos.Cleanup, engineOpts...)

	loc, err := scheduler.LoadLocation(cfg.Cleanup.Timezone)
	if err != nil {
		return nil, err
	}
	schedOpts = append(schedOpts, scheduler.WithLocation(loc))
	sched, err := scheduler.New(engine, schedOpts...)
	if err != nil {
		return nil, err
	}

	return &Services{
		Notifications:        nm,
		EmailVerification:    emailSvc,
		IdentityVerification: identitySvc,
		Cleanup:              engine,
		Scheduler:            sched,
	}, nil
}
