package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/pickflow/pickflow/internal/core/domain"
)

// EmailConfig holds SMTP settings.
type EmailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// sendMailFunc matches smtp.SendMail; injectable so tests avoid a real server.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Email sends notifications over SMTP.
type Email struct {
	cfg      EmailConfig
	sendMail sendMailFunc
}

// NewEmail creates an SMTP sender.
func NewEmail(cfg EmailConfig) *Email {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &Email{
		cfg:      cfg,
		sendMail: smtp.SendMail,
	}
}

func (e *Email) Kind() domain.ChannelKind {
	return domain.ChannelEmail
}

func (e *Email) Send(ctx context.Context, note *domain.Notification) error {
	if e.cfg.Host == "" || e.cfg.From == "" {
		return &ConfigError{Channel: domain.ChannelEmail, Reason: "smtp host or from address missing"}
	}
	if note.Recipient == "" || !strings.Contains(note.Recipient, "@") {
		return &ConfigError{Channel: domain.ChannelEmail, Reason: fmt.Sprintf("invalid recipient %q", note.Recipient)}
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", e.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", note.Recipient)
	fmt.Fprintf(&msg, "Subject: %s\r\n", note.Subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(note.Body)

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port)
	if err := e.sendMail(addr, auth, e.cfg.From, []string{note.Recipient}, []byte(msg.String())); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
