package notify

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/dkrstic/peerlink/internal/config"
)

// Mailer delivers templated mail over SMTP.
type Mailer struct {
	cfg    *config.Config
	dialer *gomail.Dialer
}

func NewMailer(cfg *config.Config) (*Mailer, error) {
	if cfg.SMTPHost == "" || cfg.SMTPUsername == "" {
		return nil, fmt.Errorf("SMTP credentials not configured")
	}

	dialer := gomail.NewDialer(
		cfg.SMTPHost,
		cfg.SMTPPort,
		cfg.SMTPUsername,
		cfg.SMTPPassword,
	)

	return &Mailer{cfg: cfg, dialer: dialer}, nil
}

func (m *Mailer) Send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", fmt.Sprintf("%s <%s>", m.cfg.SMTPFromName, m.cfg.SMTPFromEmail))
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}
