package odds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// FeedError carries a non-2xx feed response; the status code drives retry
// classification.
type FeedError struct {
	Status int
	Body   string
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("odds feed returned %d: %s", e.Status, e.Body)
}

func (e *FeedError) StatusCode() int {
	return e.Status
}

// FeedGame is one upcoming or live game as the feed reports it.
type FeedGame struct {
	ID        string     `json:"id"`
	League    string     `json:"league"`
	HomeTeam  string     `json:"home_team"`
	AwayTeam  string     `json:"away_team"`
	StartsAt  time.Time  `json:"starts_at"`
	Status    string     `json:"status"`
	HomeScore int        `json:"home_score"`
	AwayScore int        `json:"away_score"`
	Lines     []FeedLine `json:"lines"`
}

// FeedLine is one book's current price on a market.
type FeedLine struct {
	Book      string  `json:"book"`
	Market    string  `json:"market"`
	Line      float64 `json:"line"`
	HomePrice int     `json:"home_price"`
	AwayPrice int     `json:"away_price"`
}

// FeedPage is the feed response for one league poll.
type FeedPage struct {
	Games     []FeedGame `json:"games"`
	AsOf      time.Time  `json:"as_of"`
}

// FeedClient polls the upstream odds feed over HTTP.
type FeedClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewFeedClient creates a feed client.
func NewFeedClient(baseURL, apiKey string, timeout time.Duration) *FeedClient {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &FeedClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Fetch returns games and lines for one league updated since the cursor.
func (c *FeedClient) Fetch(ctx context.Context, league string, since time.Time) (*FeedPage, error) {
	q := url.Values{}
	q.Set("league", league)
	if !since.IsZero() {
		q.Set("since", since.Format(time.RFC3339))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &FeedError{Status: resp.StatusCode, Body: string(snippet)}
	}

	var page FeedPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode feed response: %w", err)
	}
	return &page, nil
}
