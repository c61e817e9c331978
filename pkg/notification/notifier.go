package notification

// NotificationSystem represents a delivery channel
type NotificationSystem string

// NoticeType identifies which message is being sent
type NoticeType string

const (
	EmailSystem NotificationSystem = "email"

	ExampleNotice               NoticeType = "example"
	EmailVerificationNotice     NoticeType = "email_verification"
	IdentityVerificationDecided NoticeType = "identity_verification_decided"
)

type NotificationData struct {
	To      string            // Recipient identifier, an email address for EmailSystem
	Subject string            // Optional subject override
	Body    string            // Optional pre-rendered body
	Data    map[string]string // Template variables
}

// NoticeTemplate holds the subject and bodies rendered for one notice type
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

type Notifier interface {
	Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error
}
