// Command emailtest sends a sample verification email through the
// configured SMTP settings.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/tendant/simple-verification/pkg/bootstrap"
	"github.com/tendant/simple-verification/pkg/config"
	"github.com/tendant/simple-verification/pkg/notification"
	"github.com/tendant/simple-verification/pkg/utils"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	to := flag.String("to", "", "Recipient email address")
	host := flag.String("host", cfg.Email.Host, "SMTP server host (defaults to EMAIL_HOST)")
	port := flag.Uint("port", uint(cfg.Email.Port), "SMTP server port")
	flag.Parse()

	if err := utils.ValidateVar(*to, "required,email"); err != nil {
		fmt.Println("Error: -to must be a valid email address")
		os.Exit(1)
	}

	cfg.Email.Host = *host
	cfg.Email.Port = uint16(*port)
	cfg.Email.Disabled = false
	if err := config.Validate(cfg.Email.Validate); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	nm, err := bootstrap.NewNotificationManager(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	err = nm.Send(notification.EmailVerificationNotice, notification.NotificationData{
		To: *to,
		Data: map[string]string{
			"Email":            *to,
			"VerificationLink": cfg.Verification.BaseURL + cfg.Verification.VerifyPath + "?token=test-" + time.Now().UTC().Format("20060102150405"),
			"ExpiryMinutes":    fmt.Sprintf("%.0f", cfg.Verification.EmailTokenExpiry.Minutes()),
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to send email: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Verification email sent to %s via %s:%d\n", utils.MaskEmail(*to), cfg.Email.Host, cfg.Email.Port)
}
