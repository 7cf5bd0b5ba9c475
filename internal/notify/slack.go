package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pickflow/pickflow/internal/core/domain"
)

// SlackConfig holds Slack webhook settings.
type SlackConfig struct {
	WebhookURL string        `yaml:"webhook_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Slack posts notifications to a Slack incoming webhook.
type Slack struct {
	cfg    SlackConfig
	client *http.Client
}

// NewSlack creates a Slack webhook sender.
func NewSlack(cfg SlackConfig) *Slack {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Slack{
		cfg:    cfg,
		client: newHTTPClient(cfg.Timeout),
	}
}

func (s *Slack) Kind() domain.ChannelKind {
	return domain.ChannelSlack
}

func (s *Slack) Send(ctx context.Context, note *domain.Notification) error {
	url := note.Recipient
	if url == "" {
		url = s.cfg.WebhookURL
	}
	if url == "" {
		return &ConfigError{Channel: domain.ChannelSlack, Reason: "no webhook url configured"}
	}

	payload := map[string]any{
		"text": fmt.Sprintf("*%s*\n%s", note.Subject, note.Body),
	}
	return postJSON(ctx, s.client, url, payload, nil)
}
