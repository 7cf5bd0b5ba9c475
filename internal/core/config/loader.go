package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Agents.Odds.PollInterval == 0 {
		cfg.Agents.Odds.PollInterval = 60 * time.Second
	}
	if cfg.Agents.Grading.ScanInterval == 0 {
		cfg.Agents.Grading.ScanInterval = 30 * time.Second
	}
	if cfg.Agents.Audit.SweepInterval == 0 {
		cfg.Agents.Audit.SweepInterval = 10 * time.Minute
	}
	if cfg.Agents.Audit.StaleAfter == 0 {
		cfg.Agents.Audit.StaleAfter = 6 * time.Hour
	}
	if cfg.Agents.Audit.DeadRetention == 0 {
		cfg.Agents.Audit.DeadRetention = 7 * 24 * time.Hour
	}
	if cfg.Agents.Onboarding.ScanInterval == 0 {
		cfg.Agents.Onboarding.ScanInterval = time.Minute
	}
	if cfg.Agents.Dispatch.DrainInterval == 0 {
		cfg.Agents.Dispatch.DrainInterval = 15 * time.Second
	}
	if cfg.Agents.Dispatch.BatchSize == 0 {
		cfg.Agents.Dispatch.BatchSize = 50
	}
	if cfg.Agents.Dispatch.MaxAttempts == 0 {
		cfg.Agents.Dispatch.MaxAttempts = 8
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 4
	}
	if cfg.Retry.InitialBackoff == 0 {
		cfg.Retry.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.Retry.MaxBackoff == 0 {
		cfg.Retry.MaxBackoff = 15 * time.Second
	}
}
