package notification

import (
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"io"
	"log/slog"
	texttemplate "text/template"
	"time"

	"github.com/tendant/simple-verification/pkg/utils"
	"github.com/wneessen/go-mail"
)

const (
	defaultSMTPTimeout = 30 * time.Second

	// HeaderNoticeType tags outgoing mail with the notice that produced it
	HeaderNoticeType mail.Header = "X-Notice-Type"
)

var errMissingRecipient = errors.New("email notification requires a recipient address")

// SMTPConfig describes the outgoing mail server
type SMTPConfig struct {
	Host     string
	Port     int
	TLS      bool
	Username string
	Password string
	From     string
	FromName string
	// Timeout bounds dialing and sending. Zero means 30s.
	Timeout time.Duration
}

// EmailNotifier delivers notices over SMTP
type EmailNotifier struct {
	cfg    SMTPConfig
	client *mail.Client
}

func NewEmailNotifier(cfg SMTPConfig) (*EmailNotifier, error) {
	client, err := mail.NewClient(cfg.Host, smtpOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client for %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	slog.Info("SMTP notifier ready", "host", cfg.Host, "port", cfg.Port, "tls", cfg.TLS, "auth", cfg.Username != "")
	return &EmailNotifier{cfg: cfg, client: client}, nil
}

func smtpOptions(cfg SMTPConfig) []mail.Option {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSMTPTimeout
	}
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(timeout),
	}

	// local relays such as mailhog accept anonymous plaintext
	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	if cfg.TLS {
		return append(opts,
			mail.WithTLSConfig(&tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}),
			mail.WithTLSPolicy(mail.TLSMandatory),
		)
	}
	return append(opts, mail.WithTLSPolicy(mail.NoTLS))
}

// Send renders the template and delivers a single message
func (e *EmailNotifier) Send(noticeType NoticeType, notification NotificationData, noticeTemplate NoticeTemplate) error {
	if notification.To == "" {
		return errMissingRecipient
	}

	msg, err := e.buildMessage(noticeType, notification, noticeTemplate)
	if err != nil {
		return err
	}

	if err := e.client.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send %s email: %w", noticeType, err)
	}

	slog.Info("Email sent", "notice_type", noticeType, "to", utils.MaskEmail(notification.To))
	return nil
}

func (e *EmailNotifier) buildMessage(noticeType NoticeType, notification NotificationData, noticeTemplate NoticeTemplate) (*mail.Msg, error) {
	textBody, htmlBody, err := RenderTemplate(noticeTemplate, notification.Data)
	if err != nil {
		return nil, err
	}
	if textBody == "" && htmlBody == "" {
		textBody = notification.Body
	}

	msg := mail.NewMsg()
	if e.cfg.FromName != "" {
		err = msg.FromFormat(e.cfg.FromName, e.cfg.From)
	} else {
		err = msg.From(e.cfg.From)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid sender address %q: %w", e.cfg.From, err)
	}
	if err := msg.To(notification.To); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}

	subject := noticeTemplate.Subject
	if notification.Subject != "" {
		subject = notification.Subject
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetGenHeader(HeaderNoticeType, string(noticeType))

	switch {
	case textBody != "" && htmlBody != "":
		msg.SetBodyString(mail.TypeTextPlain, textBody)
		msg.AddAlternativeString(mail.TypeTextHTML, htmlBody)
	case htmlBody != "":
		msg.SetBodyString(mail.TypeTextHTML, htmlBody)
	default:
		msg.SetBodyString(mail.TypeTextPlain, textBody)
	}
	return msg, nil
}

type executor interface {
	Execute(w io.Writer, data any) error
}

// RenderTemplate executes the text and html bodies of t against data.
// Html bodies are escaped with html/template.
func RenderTemplate(t NoticeTemplate, data map[string]string) (string, string, error) {
	var textBody, htmlBody string

	if t.Text != "" {
		tmpl, err := texttemplate.New("text").Parse(t.Text)
		if err != nil {
			return "", "", fmt.Errorf("failed to parse text template: %w", err)
		}
		if textBody, err = execute(tmpl, data); err != nil {
			return "", "", fmt.Errorf("failed to render text template: %w", err)
		}
	}

	if t.Html != "" {
		tmpl, err := htmltemplate.New("html").Parse(t.Html)
		if err != nil {
			return "", "", fmt.Errorf("failed to parse html template: %w", err)
		}
		if htmlBody, err = execute(tmpl, data); err != nil {
			return "", "", fmt.Errorf("failed to render html template: %w", err)
		}
	}

	return textBody, htmlBody, nil
}

func execute(tmpl executor, data map[string]string) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
