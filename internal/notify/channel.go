// Package notify sends outbox rows over external channels. Every sender is a
// thin transport wrapper; retry decisions belong to the caller.
package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pickflow/pickflow/internal/core/domain"
)

// Channel delivers one notification over a single transport.
type Channel interface {
	// Kind names the channel for routing and metrics labels.
	Kind() domain.ChannelKind

	// Send delivers the notification or returns a typed error the caller's
	// retry predicate can classify.
	Send(ctx context.Context, note *domain.Notification) error
}

// ConfigError marks a notification that can never be delivered as configured
// (missing webhook URL, empty recipient). Never retryable.
type ConfigError struct {
	Channel domain.ChannelKind
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Channel, e.Reason)
}

// HTTPError carries a non-2xx response so retry classification can
// distinguish throttling and server failures from bad requests.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// StatusCode implements the interface the retry classifier inspects.
func (e *HTTPError) StatusCode() int {
	return e.Status
}

func basicAuth(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// postJSON sends a JSON payload and maps any non-2xx response to *HTTPError.
func postJSON(
	ctx context.Context,
	client *http.Client,
	url string,
	payload any,
	headers map[string]string,
) error {
	return sendJSON(ctx, client, http.MethodPost, url, payload, headers)
}

func sendJSON(
	ctx context.Context,
	client *http.Client,
	method, url string,
	payload any,
	headers map[string]string,
) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &HTTPError{Status: resp.StatusCode, Body: string(snippet)}
	}
	return nil
}
