package notify

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// SMTPConfig carries the submission settings for the email channel.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       string
}

// Complete reports whether enough settings are present to submit mail.
// Port has a default; everything else is required.
func (c SMTPConfig) Complete() bool {
	return c.Host != "" && c.User != "" && c.Password != "" && c.From != "" && c.To != ""
}

// EmailNotifier submits the message over SMTP with STARTTLS and login.
type EmailNotifier struct {
	cfg SMTPConfig

	// send is the submission seam; sms reuses it with a gateway address.
	send func(cfg SMTPConfig, to string, msg Message) error
}

// NewEmailNotifier creates the email channel. The port defaults to 587,
// the standard submission port where STARTTLS is negotiated.
func NewEmailNotifier(cfg SMTPConfig) *EmailNotifier {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &EmailNotifier{cfg: cfg, send: submitMail}
}

// Name implements Notifier.
func (n *EmailNotifier) Name() string { return "email" }

// Send submits the message to the configured recipient.
func (n *EmailNotifier) Send(_ context.Context, msg Message) error {
	if !n.cfg.Complete() {
		return fmt.Errorf(
			"%w: missing SMTP settings (need host, user, password, from, to)",
			ErrNotConfigured,
		)
	}
	if err := n.send(n.cfg, n.cfg.To, msg); err != nil {
		return fmt.Errorf("smtp submit: %w", err)
	}
	return nil
}

func submitMail(cfg SMTPConfig, to string, msg Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", msg.Title)
	m.SetBody("text/plain", msg.Body)

	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	return d.DialAndSend(m)
}
