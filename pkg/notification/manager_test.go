package notification

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNotificationManager(t *testing.T) {
	nm := NewNotificationManager("http://localhost:3000")
	require.NotNil(t, nm)
	assert.NotNil(t, nm.notifiers)
	assert.NotNil(t, nm.notificationRegistry)
	assert.Equal(t, "http://localhost:3000", nm.BaseUrl)
}

func TestRegisterNotifier(t *testing.T) {
	nm := NewNotificationManager("")
	mockNotifier := &MockNotifier{}

	nm.RegisterNotifier(EmailSystem, mockNotifier)
	assert.Same(t, mockNotifier, nm.notifiers[EmailSystem])

	newMockNotifier := &MockNotifier{}
	nm.RegisterNotifier(EmailSystem, newMockNotifier)
	assert.Same(t, newMockNotifier, nm.notifiers[EmailSystem])
}

func TestRegisterNotification(t *testing.T) {
	tests := []struct {
		name        string
		noticeType  NoticeType
		system      NotificationSystem
		template    NoticeTemplate
		shouldError bool
	}{
		{"Text and Html", ExampleNotice, EmailSystem, NoticeTemplate{Subject: "Example", Text: "text", Html: "<p>html</p>"}, false},
		{"Text only", ExampleNotice, EmailSystem, NoticeTemplate{Subject: "Example", Text: "text"}, false},
		{"Html only", ExampleNotice, EmailSystem, NoticeTemplate{Subject: "Example", Html: "<p>html</p>"}, false},
		{"Empty notice type", "", EmailSystem, NoticeTemplate{Subject: "Example", Text: "text"}, true},
		{"Empty system", ExampleNotice, "", NoticeTemplate{Subject: "Example", Text: "text"}, true},
		{"Empty subject", ExampleNotice, EmailSystem, NoticeTemplate{Text: "text"}, true},
		{"No content", ExampleNotice, EmailSystem, NoticeTemplate{Subject: "Example"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nm := NewNotificationManager("")
			err := nm.RegisterNotification(tt.noticeType, tt.system, tt.template)
			if tt.shouldError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.template, nm.notificationRegistry[tt.noticeType][tt.system])
		})
	}
}

func TestSend(t *testing.T) {
	mockEmailNotifier := &MockNotifier{}
	nm, err := NewNotificationManagerWithOptions("",
		WithNotifier(EmailSystem, mockEmailNotifier),
		WithDefaultTemplates(),
	)
	require.NoError(t, err)

	data := NotificationData{
		To: "user@example.com",
		Data: map[string]string{
			"Email":            "user@example.com",
			"VerificationLink": "http://localhost/verify?token=abc",
			"ExpiryMinutes":    "15",
		},
	}
	require.NoError(t, nm.Send(EmailVerificationNotice, data))

	sent := mockEmailNotifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "user@example.com", sent[0].To)
	assert.Equal(t, []NoticeType{EmailVerificationNotice}, mockEmailNotifier.SentTypes)
}

func TestSendErrors(t *testing.T) {
	nm := NewNotificationManager("")

	err := nm.Send("unregistered", NotificationData{})
	assert.Error(t, err)

	require.NoError(t, nm.RegisterNotification(ExampleNotice, EmailSystem, NoticeTemplate{Subject: "Example", Html: "<p>x</p>"}))
	err = nm.Send(ExampleNotice, NotificationData{})
	require.Error(t, err)
	assert.Equal(t, "no notifier registered for system: email", err.Error())

	failing := &MockNotifier{Err: errors.New("smtp down")}
	nm.RegisterNotifier(EmailSystem, failing)
	err = nm.Send(ExampleNotice, NotificationData{To: "a@b.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
	assert.Len(t, failing.Sent(), 1)
}

func TestRenderTemplate(t *testing.T) {
	text, html, err := RenderTemplate(NoticeTemplate{
		Subject: "s",
		Text:    "Hello {{.Name}}",
		Html:    "<p>{{.Name}}</p>",
	}, map[string]string{"Name": "<b>Ana</b>"})
	require.NoError(t, err)
	assert.Equal(t, "Hello <b>Ana</b>", text)
	assert.Equal(t, "<p>&lt;b&gt;Ana&lt;/b&gt;</p>", html)

	_, _, err = RenderTemplate(NoticeTemplate{Subject: "s", Text: "{{.Name"}, nil)
	assert.Error(t, err)
}

func TestDefaultTemplatesRender(t *testing.T) {
	_, html, err := RenderTemplate(NoticeTemplate{
		Subject: "s",
		Html:    loadTemplate("templates/email/email_verification.html"),
	}, map[string]string{"Email": "a@b.com", "VerificationLink": "http://x/verify?token=t", "ExpiryMinutes": "15"})
	require.NoError(t, err)
	assert.Contains(t, html, "http://x/verify?token=t")
	assert.Contains(t, html, "15 minutes")
}
