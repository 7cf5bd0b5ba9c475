package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pickflow/pickflow/internal/core/domain"
)

const notionAPIVersion = "2022-06-28"

// NotionConfig holds Notion API settings.
type NotionConfig struct {
	Token   string        `yaml:"token"`
	PageID  string        `yaml:"page_id"` // default page for rows without a recipient
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Notion appends notification blocks to a Notion page. The outbox row's
// recipient is the page id.
type Notion struct {
	cfg    NotionConfig
	client *http.Client
}

// NewNotion creates a Notion API sender.
func NewNotion(cfg NotionConfig) *Notion {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.notion.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Notion{
		cfg:    cfg,
		client: newHTTPClient(cfg.Timeout),
	}
}

func (n *Notion) Kind() domain.ChannelKind {
	return domain.ChannelNotion
}

func (n *Notion) Send(ctx context.Context, note *domain.Notification) error {
	if n.cfg.Token == "" {
		return &ConfigError{Channel: domain.ChannelNotion, Reason: "no api token configured"}
	}
	pageID := note.Recipient
	if pageID == "" {
		pageID = n.cfg.PageID
	}
	if pageID == "" {
		return &ConfigError{Channel: domain.ChannelNotion, Reason: "no page id"}
	}

	url := fmt.Sprintf("%s/v1/blocks/%s/children", n.cfg.BaseURL, pageID)
	payload := map[string]any{
		"children": []map[string]any{
			{
				"object": "block",
				"type":   "paragraph",
				"paragraph": map[string]any{
					"rich_text": []map[string]any{
						{
							"type": "text",
							"text": map[string]string{
								"content": fmt.Sprintf("%s: %s", note.Subject, note.Body),
							},
						},
					},
				},
			},
		},
	}
	headers := map[string]string{
		"Authorization":  "Bearer " + n.cfg.Token,
		"Notion-Version": notionAPIVersion,
	}
	// Notion appends children with PATCH.
	return sendJSON(ctx, n.client, http.MethodPatch, url, payload, headers)
}
