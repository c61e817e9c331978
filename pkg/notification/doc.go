// Package notification delivers verification messages.
//
// A NotificationManager maps each NoticeType to a NoticeTemplate per
// NotificationSystem and hands rendered messages to the registered Notifier.
// EmailNotifier sends through SMTP with go-mail; MockNotifier records messages
// for tests.
//
//	nm, err := notification.NewNotificationManagerWithOptions(baseURL,
//		notification.WithSMTP(smtpConfig),
//		notification.WithDefaultTemplates(),
//	)
//	err = nm.Send(notification.EmailVerificationNotice, notification.NotificationData{
//		To:   "user@example.com",
//		Data: map[string]string{"VerificationLink": link, "ExpiryMinutes": "15"},
//	})
//
// Templates are embedded from templates/email. Text bodies use text/template,
// Html bodies use html/template so template variables are escaped.
package notification
