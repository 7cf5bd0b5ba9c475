package control

import (
	"context"
	"testing"
	"time"

	"github.com/pickflow/pickflow/internal/core/config"
	"github.com/pickflow/pickflow/internal/core/domain"
	"github.com/pickflow/pickflow/internal/notify"
)

func memoryConfig() config.AppConfig {
	return config.AppConfig{
		Server: config.ServerConfig{Port: 0},
		Agents: config.AgentsConfig{
			Odds: config.OddsAgentConfig{
				Enabled:      true,
				FeedURL:      "http://feed.local",
				Leagues:      []string{"nba"},
				PollInterval: time.Minute,
			},
			Grading:    config.GradingAgentConfig{Enabled: true, ScanInterval: time.Minute},
			Audit:      config.AuditAgentConfig{Enabled: true, SweepInterval: time.Minute, StaleAfter: time.Hour, DeadRetention: time.Hour},
			Onboarding: config.OnboardingAgentConfig{Enabled: true, ScanInterval: time.Minute},
			Dispatch:   config.DispatchAgentConfig{Enabled: true, DrainInterval: time.Minute, BatchSize: 10, MaxAttempts: 3},
		},
		Channels: config.ChannelsConfig{
			Slack: notify.SlackConfig{WebhookURL: "https://hooks.slack.example/T/B/x"},
		},
		Retry: config.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 10 * time.Millisecond,
			MaxBackoff:     100 * time.Millisecond,
		},
	}
}

func TestNewService_MemoryMode(t *testing.T) {
	svc, err := NewService(context.Background(), memoryConfig(), nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	if len(svc.agents) != 5 {
		t.Errorf("expected 5 agents, got %d", len(svc.agents))
	}
	if svc.db != nil {
		t.Error("memory mode should not open a database")
	}
}

func TestNewService_DisabledAgentsSkipped(t *testing.T) {
	cfg := memoryConfig()
	cfg.Agents.Odds.Enabled = false
	cfg.Agents.Onboarding.Enabled = false

	svc, err := NewService(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	if len(svc.agents) != 3 {
		t.Errorf("expected 3 agents, got %d", len(svc.agents))
	}
}

func TestServiceStartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := NewService(ctx, memoryConfig(), nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Give the agent goroutines a beat to spin up before shutdown.
	time.Sleep(20 * time.Millisecond)

	if err := svc.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestBuildChannels(t *testing.T) {
	channels, ops := buildChannels(config.ChannelsConfig{
		Discord: notify.DiscordConfig{WebhookURL: "https://discord.example/webhook"},
		Slack:   notify.SlackConfig{WebhookURL: "https://hooks.slack.example/T/B/x"},
		Email:   notify.EmailConfig{Host: "smtp.example.com", Port: 587, From: "ops@example.com"},
	})

	if len(channels) != 3 {
		t.Fatalf("expected 3 channels, got %d", len(channels))
	}

	// Email delivers to users, not the ops feed.
	want := []domain.ChannelKind{domain.ChannelDiscord, domain.ChannelSlack}
	if len(ops) != len(want) {
		t.Fatalf("ops channels = %v, want %v", ops, want)
	}
	for i, kind := range want {
		if ops[i] != kind {
			t.Errorf("ops[%d] = %s, want %s", i, ops[i], kind)
		}
	}
}
