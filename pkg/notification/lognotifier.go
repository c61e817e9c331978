package notification

import (
	"log/slog"

	"github.com/tendant/simple-verification/pkg/utils"
)

// LogNotifier writes notifications to the log instead of delivering them.
// It stands in for SMTP when email delivery is disabled.
type LogNotifier struct{}

func (LogNotifier) Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error {
	slog.Info("Notification not delivered, email disabled",
		"type", noticeType,
		"to", utils.MaskEmail(notification.To),
		"subject", template.Subject)
	return nil
}
