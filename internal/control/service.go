// Package control wires configuration into a running service: storage,
// Redis, delivery channels, the agents, and the health server.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/pickflow/pickflow/internal/agents"
	"github.com/pickflow/pickflow/internal/agents/audit"
	"github.com/pickflow/pickflow/internal/agents/dispatch"
	"github.com/pickflow/pickflow/internal/agents/grading"
	"github.com/pickflow/pickflow/internal/agents/odds"
	"github.com/pickflow/pickflow/internal/agents/onboarding"
	"github.com/pickflow/pickflow/internal/core/config"
	"github.com/pickflow/pickflow/internal/core/domain"
	"github.com/pickflow/pickflow/internal/health"
	redisclient "github.com/pickflow/pickflow/internal/infra/redis"
	"github.com/pickflow/pickflow/internal/infra/storage"
	"github.com/pickflow/pickflow/internal/infra/storage/memory"
	"github.com/pickflow/pickflow/internal/infra/storage/postgres"
	"github.com/pickflow/pickflow/internal/notify"
	"github.com/pickflow/pickflow/internal/retry"
)

// repos bundles every repository the agents share.
type repos struct {
	games   storage.GameRepository
	picks   storage.PickRepository
	odds    storage.OddsRepository
	cursors storage.CursorRepository
	users   storage.UserRepository
	outbox  storage.NotificationRepository
	audit   storage.AuditRepository
}

// Service is the running application: all agents plus the health server.
type Service struct {
	cfg          config.AppConfig
	agents       []agents.Agent
	healthServer *health.Server
	db           *postgres.DB
	redisClient  *redisclient.Client
	log          *slog.Logger
}

// NewService builds the service from configuration. Without a database URL it
// runs on in-memory storage; without a Redis URL the regrade queue, dispatch
// dedupe, and step locks are disabled.
func NewService(ctx context.Context, cfg config.AppConfig, log *slog.Logger) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}

	r, db, err := buildStorage(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	var redisClient *redisclient.Client
	if cfg.Redis.URL != "" {
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, queue features disabled", "error", err)
			redisClient = nil
		}
	}

	channels, opsKinds := buildChannels(cfg.Channels)
	composer := agents.NewComposer(r.users, r.outbox, opsKinds)
	executor := retry.New(log)
	policy := retry.Policy{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialBackoff: cfg.Retry.InitialBackoff,
		MaxBackoff:     cfg.Retry.MaxBackoff,
		ShouldRetry:    retry.Transient,
	}

	var running []agents.Agent
	var reporters []agents.HealthReporting

	if cfg.Agents.Odds.Enabled {
		feed := odds.NewFeedClient(cfg.Agents.Odds.FeedURL, cfg.Agents.Odds.APIKey, 0)
		agent := odds.New(odds.Config{
			Feed:     feed,
			Games:    r.games,
			Odds:     r.odds,
			Cursors:  r.cursors,
			Audit:    r.audit,
			Executor: executor,
			Policy:   policy,
			Leagues:  cfg.Agents.Odds.Leagues,
			Interval: cfg.Agents.Odds.PollInterval,
			Log:      log,
		})
		running = append(running, agent)
		reporters = append(reporters, agent)
	}

	if cfg.Agents.Grading.Enabled {
		gradingCfg := grading.Config{
			Games:    r.games,
			Picks:    r.picks,
			Audit:    r.audit,
			Composer: composer,
			Executor: executor,
			Policy:   policy,
			Interval: cfg.Agents.Grading.ScanInterval,
			Log:      log,
		}
		if redisClient != nil {
			gradingCfg.Regrades = redisClient
		}
		agent := grading.New(gradingCfg)
		running = append(running, agent)
		reporters = append(reporters, agent)
	}

	if cfg.Agents.Audit.Enabled {
		agent := audit.New(audit.Config{
			Picks:         r.picks,
			Outbox:        r.outbox,
			Audit:         r.audit,
			Composer:      composer,
			Executor:      executor,
			Policy:        policy,
			StaleAfter:    cfg.Agents.Audit.StaleAfter,
			DeadRetention: cfg.Agents.Audit.DeadRetention,
			Interval:      cfg.Agents.Audit.SweepInterval,
			Log:           log,
		})
		running = append(running, agent)
		reporters = append(reporters, agent)
	}

	if cfg.Agents.Onboarding.Enabled {
		onboardingCfg := onboarding.Config{
			Users:    r.users,
			Composer: composer,
			Executor: executor,
			Policy:   policy,
			Interval: cfg.Agents.Onboarding.ScanInterval,
			Log:      log,
		}
		if redisClient != nil {
			onboardingCfg.Locks = redisClient
		}
		agent := onboarding.New(onboardingCfg)
		running = append(running, agent)
		reporters = append(reporters, agent)
	}

	if cfg.Agents.Dispatch.Enabled {
		dispatchCfg := dispatch.Config{
			Outbox:      r.outbox,
			Channels:    channels,
			Executor:    executor,
			Policy:      policy,
			BatchSize:   cfg.Agents.Dispatch.BatchSize,
			MaxAttempts: cfg.Agents.Dispatch.MaxAttempts,
			Interval:    cfg.Agents.Dispatch.DrainInterval,
			Log:         log,
		}
		if redisClient != nil {
			dispatchCfg.Dedupe = redisClient
		}
		agent := dispatch.New(dispatchCfg)
		running = append(running, agent)
		reporters = append(reporters, agent)
	}

	monitor := health.NewMonitor(reporters, r.outbox, r.audit)
	healthServer := health.NewServer(monitor, cfg.Server.Port)

	return &Service{
		cfg:          cfg,
		agents:       running,
		healthServer: healthServer,
		db:           db,
		redisClient:  redisClient,
		log:          log,
	}, nil
}

// buildStorage opens PostgreSQL and runs migrations, or falls back to the
// in-memory store when no database is configured.
func buildStorage(ctx context.Context, cfg config.AppConfig, log *slog.Logger) (repos, *postgres.DB, error) {
	if cfg.Database.URL == "" {
		log.Info("using memory storage")
		store := memory.NewMemoryStorage()
		return repos{
			games:   memory.NewGameRepo(store),
			picks:   memory.NewPickRepo(store),
			odds:    memory.NewOddsRepo(store),
			cursors: memory.NewCursorRepo(store),
			users:   memory.NewUserRepo(store),
			outbox:  memory.NewOutboxRepo(store),
			audit:   memory.NewAuditRepo(store),
		}, nil, nil
	}

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return repos{}, nil, fmt.Errorf("failed to init db: %w", err)
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return repos{}, nil, err
	}
	if err := goose.Up(db.DB.DB, "migrations"); err != nil {
		return repos{}, nil, fmt.Errorf("failed to migrate db: %w", err)
	}

	log.Info("using postgresql storage")
	return repos{
		games:   postgres.NewGameRepo(db),
		picks:   postgres.NewPickRepo(db),
		odds:    postgres.NewOddsRepo(db),
		cursors: postgres.NewCursorRepo(db),
		users:   postgres.NewUserRepo(db),
		outbox:  postgres.NewOutboxRepo(db),
		audit:   postgres.NewAuditRepo(db),
	}, db, nil
}

// buildChannels creates a sender for each configured channel and returns the
// team channels that receive ops announcements.
func buildChannels(cfg config.ChannelsConfig) ([]notify.Channel, []domain.ChannelKind) {
	var channels []notify.Channel
	var ops []domain.ChannelKind

	if cfg.Discord.WebhookURL != "" {
		channels = append(channels, notify.NewDiscord(cfg.Discord))
		ops = append(ops, domain.ChannelDiscord)
	}
	if cfg.Slack.WebhookURL != "" {
		channels = append(channels, notify.NewSlack(cfg.Slack))
		ops = append(ops, domain.ChannelSlack)
	}
	if cfg.Notion.Token != "" {
		channels = append(channels, notify.NewNotion(cfg.Notion))
		ops = append(ops, domain.ChannelNotion)
	}
	if cfg.Email.Host != "" {
		channels = append(channels, notify.NewEmail(cfg.Email))
	}
	if cfg.SMS.APIURL != "" {
		channels = append(channels, notify.NewSMS(cfg.SMS))
	}
	return channels, ops
}

// Start launches the health server and every enabled agent.
func (s *Service) Start(ctx context.Context) error {
	go func() {
		if err := s.healthServer.Start(); err != nil {
			s.log.Error("health server failed", "error", err)
		}
	}()

	if s.db != nil {
		s.db.StartMetricsCollector(ctx)
	}

	for _, agent := range s.agents {
		s.log.Info("starting agent", "agent", agent.Name())
		go func(a agents.Agent) {
			if err := a.Start(ctx); err != nil {
				s.log.Error("agent failed", "agent", a.Name(), "error", err)
			}
		}(agent)
	}
	return nil
}

// Stop shuts down the agents and the health server.
func (s *Service) Stop(ctx context.Context) error {
	s.log.Info("stopping service")

	for _, agent := range s.agents {
		if err := agent.Stop(); err != nil {
			s.log.Warn("agent stop failed", "agent", agent.Name(), "error", err)
		}
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.log.Warn("failed to close redis", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Warn("failed to close database", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.healthServer.Stop(shutdownCtx)
}
