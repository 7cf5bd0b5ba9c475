package grading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pickflow/pickflow/internal/agents"
	"github.com/pickflow/pickflow/internal/core/domain"
	"github.com/pickflow/pickflow/internal/infra/storage"
	"github.com/pickflow/pickflow/internal/metrics"
	"github.com/pickflow/pickflow/internal/retry"
)

// regradeBatch bounds how many queued regrade requests one tick drains.
const regradeBatch = 25

// RegradeQueue is the Redis-backed queue of picks to grade again.
type RegradeQueue interface {
	PopRegrade(ctx context.Context) (pickID string, found bool, err error)
	PushRegrade(ctx context.Context, pickID string) error
}

// Config holds grading agent dependencies.
type Config struct {
	Games    storage.GameRepository
	Picks    storage.PickRepository
	Audit    storage.AuditRepository
	Composer *agents.Composer
	Executor *retry.Executor
	Policy   retry.Policy
	Regrades RegradeQueue // optional
	Interval time.Duration
	Log      *slog.Logger
}

// Agent settles pending picks once their games go final.
type Agent struct {
	cfg     Config
	loop    *agents.Loop
	tracker agents.Tracker
}

// New creates the grading agent.
func New(cfg Config) *Agent {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Agent{
		cfg:  cfg,
		loop: agents.NewLoop("grading", cfg.Interval, cfg.Log),
	}
}

func (a *Agent) Name() string { return "grading" }

// Start runs the grading loop. Blocks until ctx is done or Stop is called.
func (a *Agent) Start(ctx context.Context) error {
	return a.loop.Run(ctx, &a.tracker, a.tick)
}

// Stop signals the loop to exit.
func (a *Agent) Stop() error {
	a.loop.Halt()
	return nil
}

// Health reports the agent's last tick outcome.
func (a *Agent) Health() agents.Status {
	return a.tracker.Snapshot(a.Name())
}

func (a *Agent) tick(ctx context.Context) error {
	if err := a.drainRegrades(ctx); err != nil {
		return err
	}

	games, err := retry.DoValue(ctx, a.cfg.Executor, "grading.load_games", a.cfg.Policy,
		func(ctx context.Context) ([]*domain.Game, error) {
			return a.cfg.Games.ListFinalWithPendingPicks(ctx)
		})
	if err != nil {
		return fmt.Errorf("failed to load gradable games: %w", err)
	}

	for _, game := range games {
		if err := a.gradeGame(ctx, game); err != nil {
			return err
		}
	}
	return nil
}

func (a *Agent) gradeGame(ctx context.Context, game *domain.Game) error {
	picks, err := retry.DoValue(ctx, a.cfg.Executor, "grading.load_picks", a.cfg.Policy,
		func(ctx context.Context) ([]*domain.Pick, error) {
			return a.cfg.Picks.ListPendingByGame(ctx, game.ID)
		})
	if err != nil {
		return fmt.Errorf("failed to load picks for game %s: %w", game.ID, err)
	}

	for _, pick := range picks {
		if err := a.gradePick(ctx, pick, game); err != nil {
			// Park the pick and keep grading; it comes back through the
			// regrade queue.
			a.park(ctx, pick.ID, err)
		}
	}
	return nil
}

func (a *Agent) gradePick(ctx context.Context, pick *domain.Pick, game *domain.Game) error {
	status, err := Grade(pick, game)
	if err != nil {
		// A grading logic failure is a data problem, not a transient one.
		a.recordBadPick(ctx, pick, err)
		return nil
	}

	gradedAt := time.Now()
	err = a.cfg.Executor.Do(ctx, "grading.set_grade", a.cfg.Policy, func(ctx context.Context) error {
		return a.cfg.Picks.SetGrade(ctx, pick.ID, status, gradedAt)
	})
	if err != nil {
		return fmt.Errorf("failed to persist grade for pick %s: %w", pick.ID, err)
	}

	metrics.PicksGraded.WithLabelValues(game.League, string(status)).Inc()

	subject := fmt.Sprintf("Pick graded: %s", status)
	body := fmt.Sprintf("%s @ %s (%s %s %.1f) settled %s",
		game.AwayTeam, game.HomeTeam, pick.Market, pick.Side, pick.Line, status)
	if err := a.cfg.Composer.NotifyUser(ctx, pick.UserID, subject, body); err != nil {
		a.cfg.Log.Warn("failed to enqueue grade notification", "pick", pick.ID, "error", err)
	}
	return nil
}

func (a *Agent) drainRegrades(ctx context.Context) error {
	if a.cfg.Regrades == nil {
		return nil
	}

	for i := 0; i < regradeBatch; i++ {
		pickID, found, err := a.cfg.Regrades.PopRegrade(ctx)
		if err != nil {
			return fmt.Errorf("failed to pop regrade queue: %w", err)
		}
		if !found {
			return nil
		}

		if err := a.regradeOne(ctx, pickID); err != nil {
			a.park(ctx, pickID, err)
		}
	}
	return nil
}

func (a *Agent) regradeOne(ctx context.Context, pickID string) error {
	pick, err := a.cfg.Picks.GetByID(ctx, pickID)
	if errors.Is(err, storage.ErrNotFound) {
		a.cfg.Log.Warn("regrade requested for unknown pick", "pick", pickID)
		return nil
	}
	if err != nil {
		return err
	}
	if pick.Graded() {
		return nil
	}

	game, err := a.cfg.Games.GetByID(ctx, pick.GameID)
	if err != nil {
		return fmt.Errorf("failed to load game %s: %w", pick.GameID, err)
	}
	if !game.Final() && !game.Voided() {
		return nil
	}

	return a.gradePick(ctx, pick, game)
}

func (a *Agent) park(ctx context.Context, pickID string, cause error) {
	a.cfg.Log.Error("grading failed, parking pick", "pick", pickID, "error", cause)
	if a.cfg.Regrades == nil {
		return
	}
	if err := a.cfg.Regrades.PushRegrade(ctx, pickID); err != nil {
		a.cfg.Log.Error("failed to park pick for regrade", "pick", pickID, "error", err)
	}
}

func (a *Agent) recordBadPick(ctx context.Context, pick *domain.Pick, cause error) {
	finding := &domain.AuditFinding{
		ID:         agents.NewID(),
		Kind:       domain.AuditBadFeedRow,
		TableName:  "picks",
		RowRef:     pick.ID,
		Detail:     cause.Error(),
		DetectedAt: time.Now(),
	}
	if err := a.cfg.Audit.Add(ctx, finding); err != nil {
		a.cfg.Log.Error("failed to record audit finding", "pick", pick.ID, "error", err)
	}
}
