package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/mail.v2"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	// TLS selects implicit TLS; otherwise STARTTLS is used when offered.
	TLS bool
}

type Email struct {
	cfg  SMTPConfig
	send func(*mail.Message) error
}

// NewEmail returns nil when no SMTP host or recipient is configured.
func NewEmail(cfg SMTPConfig) *Email {
	if cfg.Host == "" || len(cfg.To) == 0 {
		return nil
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}

	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: cfg.Host}
	d.Timeout = 15 * time.Second
	if cfg.TLS {
		d.SSL = true
	} else {
		d.StartTLSPolicy = mail.OpportunisticStartTLS
	}
	return &Email{cfg: cfg, send: func(m *mail.Message) error { return d.DialAndSend(m) }}
}

func (e *Email) Send(ctx context.Context, title, text string) error {
	if e == nil {
		return errors.New("email disabled")
	}
	m := mail.NewMessage()
	m.SetHeader("From", e.cfg.From)
	m.SetHeader("To", e.cfg.To...)
	m.SetHeader("Subject", title)
	m.SetBody("text/plain", text)

	// DialAndSend has no context; give up waiting when ctx ends
	done := make(chan error, 1)
	go func() { done <- e.send(m) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send email to %s: %w", strings.Join(e.cfg.To, ","), err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send email: %w", ctx.Err())
	}
}
