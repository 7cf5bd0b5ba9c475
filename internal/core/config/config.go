package config

import (
	"time"

	"github.com/pickflow/pickflow/internal/notify"

	redisclient "github.com/pickflow/pickflow/internal/infra/redis"
	"github.com/pickflow/pickflow/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
	Database postgres.Config    `yaml:"database"`
	Redis    redisclient.Config `yaml:"redis"`
	Agents   AgentsConfig       `yaml:"agents"`
	Channels ChannelsConfig     `yaml:"channels"`
	Retry    RetryConfig        `yaml:"retry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// AgentsConfig holds per-agent loop settings.
type AgentsConfig struct {
	Odds       OddsAgentConfig       `yaml:"odds"`
	Grading    GradingAgentConfig    `yaml:"grading"`
	Audit      AuditAgentConfig      `yaml:"audit"`
	Onboarding OnboardingAgentConfig `yaml:"onboarding"`
	Dispatch   DispatchAgentConfig   `yaml:"dispatch"`
}

// OddsAgentConfig configures the odds feed poller.
type OddsAgentConfig struct {
	Enabled      bool          `yaml:"enabled"`
	FeedURL      string        `yaml:"feed_url"`
	APIKey       string        `yaml:"api_key"`
	Leagues      []string      `yaml:"leagues"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// GradingAgentConfig configures the pick grader.
type GradingAgentConfig struct {
	Enabled      bool          `yaml:"enabled"`
	ScanInterval time.Duration `yaml:"scan_interval"`
}

// AuditAgentConfig configures the integrity sweep.
type AuditAgentConfig struct {
	Enabled       bool          `yaml:"enabled"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	StaleAfter    time.Duration `yaml:"stale_after"`
	DeadRetention time.Duration `yaml:"dead_retention"`
}

// OnboardingAgentConfig configures the user funnel agent.
type OnboardingAgentConfig struct {
	Enabled      bool          `yaml:"enabled"`
	ScanInterval time.Duration `yaml:"scan_interval"`
}

// DispatchAgentConfig configures the outbox dispatcher.
type DispatchAgentConfig struct {
	Enabled       bool          `yaml:"enabled"`
	DrainInterval time.Duration `yaml:"drain_interval"`
	BatchSize     int           `yaml:"batch_size"`
	MaxAttempts   int           `yaml:"max_attempts"` // attempts across drains before a row goes dead
}

// ChannelsConfig holds per-channel delivery settings.
type ChannelsConfig struct {
	Discord notify.DiscordConfig `yaml:"discord"`
	Slack   notify.SlackConfig   `yaml:"slack"`
	Email   notify.EmailConfig   `yaml:"email"`
	SMS     notify.SMSConfig     `yaml:"sms"`
	Notion  notify.NotionConfig  `yaml:"notion"`
}

// RetryConfig holds the default retry policy applied to remote calls.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}
