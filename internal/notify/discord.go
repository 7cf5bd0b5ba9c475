package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pickflow/pickflow/internal/core/domain"
)

// DiscordConfig holds Discord webhook settings.
type DiscordConfig struct {
	WebhookURL string        `yaml:"webhook_url"`
	Username   string        `yaml:"username"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Discord posts notifications to a Discord webhook.
type Discord struct {
	cfg    DiscordConfig
	client *http.Client
}

// NewDiscord creates a Discord webhook sender.
func NewDiscord(cfg DiscordConfig) *Discord {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Discord{
		cfg:    cfg,
		client: newHTTPClient(cfg.Timeout),
	}
}

func (d *Discord) Kind() domain.ChannelKind {
	return domain.ChannelDiscord
}

// Send posts the notification body as a webhook message. A per-row recipient
// overrides the configured webhook, so one sender serves many servers.
func (d *Discord) Send(ctx context.Context, note *domain.Notification) error {
	url := note.Recipient
	if url == "" {
		url = d.cfg.WebhookURL
	}
	if url == "" {
		return &ConfigError{Channel: domain.ChannelDiscord, Reason: "no webhook url configured"}
	}

	payload := map[string]any{
		"content": fmt.Sprintf("**%s**\n%s", note.Subject, note.Body),
	}
	if d.cfg.Username != "" {
		payload["username"] = d.cfg.Username
	}

	return postJSON(ctx, d.client, url, payload, nil)
}
