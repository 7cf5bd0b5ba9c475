package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps Redis operations for the agent pipelines: the regrade queue,
// dispatch dedupe keys, and onboarding step locks.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Key helpers
func regradeKey() string {
	return "regrade:picks"
}

func dedupeKey(scope, ref string) string {
	return fmt.Sprintf("dedupe:%s:%s", scope, ref)
}

func stepLockKey(userID, step string) string {
	return fmt.Sprintf("onboarding:%s:%s", userID, step)
}

// PushRegrade adds a pick to the regrade queue, scored by enqueue time so
// the oldest request pops first.
func (c *Client) PushRegrade(ctx context.Context, pickID string) error {
	member := redis.Z{Score: float64(time.Now().UnixNano()), Member: pickID}
	if err := c.rdb.ZAdd(ctx, regradeKey(), member).Err(); err != nil {
		return fmt.Errorf("zadd failed: %w", err)
	}
	return nil
}

// PopRegrade pops the oldest pick id from the regrade queue.
func (c *Client) PopRegrade(ctx context.Context) (pickID string, found bool, err error) {
	results, err := c.rdb.ZRangeWithScores(ctx, regradeKey(), 0, 0).Result()
	if err != nil {
		return "", false, fmt.Errorf("zrange failed: %w", err)
	}
	if len(results) == 0 {
		return "", false, nil
	}

	member := results[0].Member.(string)
	if err := c.rdb.ZRem(ctx, regradeKey(), member).Err(); err != nil {
		return "", false, fmt.Errorf("zrem failed: %w", err)
	}
	return member, true, nil
}

// RegradeDepth returns the number of queued regrade requests.
func (c *Client) RegradeDepth(ctx context.Context) (int64, error) {
	return c.rdb.ZCard(ctx, regradeKey()).Result()
}

// ClaimOnce sets a dedupe key with a TTL. It returns true when the caller is
// the first to claim it, false when the work was already done elsewhere.
func (c *Client) ClaimOnce(ctx context.Context, scope, ref string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, dedupeKey(scope, ref), "claimed", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	return ok, nil
}

// ReleaseClaim drops a dedupe key, allowing the work to run again.
func (c *Client) ReleaseClaim(ctx context.Context, scope, ref string) error {
	return c.rdb.Del(ctx, dedupeKey(scope, ref)).Err()
}

// AcquireStepLock locks one user's onboarding step transition.
func (c *Client) AcquireStepLock(
	ctx context.Context,
	userID, step string,
	ttl time.Duration,
) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, stepLockKey(userID, step), "locked", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	return ok, nil
}

// ReleaseStepLock releases an onboarding step lock.
func (c *Client) ReleaseStepLock(ctx context.Context, userID, step string) error {
	return c.rdb.Del(ctx, stepLockKey(userID, step)).Err()
}
