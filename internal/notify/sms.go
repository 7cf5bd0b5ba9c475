package notify

import (
	"context"
	"net/http"
	"time"

	"github.com/pickflow/pickflow/internal/core/domain"
)

// SMSConfig holds settings for an HTTP SMS gateway.
type SMSConfig struct {
	APIURL     string        `yaml:"api_url"`
	AccountSID string        `yaml:"account_sid"`
	AuthToken  string        `yaml:"auth_token"`
	FromNumber string        `yaml:"from_number"`
	Timeout    time.Duration `yaml:"timeout"`
}

// SMS sends notifications through a JSON SMS gateway with basic auth.
type SMS struct {
	cfg    SMSConfig
	client *http.Client
}

// NewSMS creates an SMS gateway sender.
func NewSMS(cfg SMSConfig) *SMS {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMS{
		cfg:    cfg,
		client: newHTTPClient(cfg.Timeout),
	}
}

func (s *SMS) Kind() domain.ChannelKind {
	return domain.ChannelSMS
}

func (s *SMS) Send(ctx context.Context, note *domain.Notification) error {
	if s.cfg.APIURL == "" || s.cfg.FromNumber == "" {
		return &ConfigError{Channel: domain.ChannelSMS, Reason: "gateway url or from number missing"}
	}
	if note.Recipient == "" {
		return &ConfigError{Channel: domain.ChannelSMS, Reason: "no destination number"}
	}

	payload := map[string]string{
		"from": s.cfg.FromNumber,
		"to":   note.Recipient,
		"body": note.Body,
	}
	headers := map[string]string{
		"Authorization": "Basic " + basicAuth(s.cfg.AccountSID, s.cfg.AuthToken),
	}
	return postJSON(ctx, s.client, s.cfg.APIURL, payload, headers)
}
