package odds

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

// Fetcher abstracts the feed client for testing.
type Fetcher interface {
	Fetch(ctx context.Context, league string, since time.Time) (*FeedPage, error)
}

// Config holds odds agent dependencies.
type Config struct {
	Feed     Fetcher
	Leagues  []string
	Games    storage.GameRepository
	Odds     storage.OddsRepository
	Cursors  storage.CursorRepository
	Audit    storage.AuditRepository
	Executor *retry.Executor
	Policy   retry.Policy
	Interval time.Duration
	Log      *slog.Logger
}

// Agent polls the odds feed and persists games and line snapshots.
type Agent struct {
	cfg     Config
	loop    *agents.Loop
	tracker agents.Tracker
}

// New creates the odds ingestion agent.
func New(cfg Config) *Agent {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Agent{
		cfg:  cfg,
		loop: agents.NewLoop("odds", cfg.Interval, cfg.Log),
	}
}

func (a *Agent) Name() string { return "odds" }

func (a *Agent) Start(ctx context.Context) error {
	return a.loop.Run(ctx, &a.tracker, a.tick)
}

func (a *Agent) Stop() error {
	a.loop.Halt()
	return nil
}

func (a *Agent) Health() agents.Status {
	return a.tracker.Snapshot(a.Name())
}

func (a *Agent) tick(ctx context.Context) error {
	for _, league := range a.cfg.Leagues {
		if err := a.ingestLeague(ctx, league); err != nil {
			return fmt.Errorf("league %s: %w", league, err)
		}
	}
	return nil
}

func (a *Agent) ingestLeague(ctx context.Context, league string) error {
	since := time.Time{}
	cursor, err := a.cfg.Cursors.Get(ctx, league)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to load feed cursor: %w", err)
	}
	if cursor != nil {
		since = cursor.LastSeen
	}

	page, err := retry.DoValue(ctx, a.cfg.Executor, "odds.fetch_feed", a.cfg.Policy,
		func(ctx context.Context) (*FeedPage, error) {
			return a.cfg.Feed.Fetch(ctx, league, since)
		})
	if err != nil {
		return fmt.Errorf("failed to fetch feed: %w", err)
	}

	capturedAt := page.AsOf
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}

	var snaps []*domain.OddsSnapshot
	for _, fg := range page.Games {
		game, lines, err := convertGame(fg, capturedAt)
		if err != nil {
			a.recordBadRow(ctx, fg.ID, err)
			continue
		}

		err = a.cfg.Executor.Do(ctx, "odds.upsert_game", a.cfg.Policy, func(ctx context.Context) error {
			return a.cfg.Games.Upsert(ctx, game)
		})
		if err != nil {
			return fmt.Errorf("failed to upsert game %s: %w", game.ID, err)
		}

		snaps = append(snaps, lines...)
	}

	if len(snaps) > 0 {
		err = a.cfg.Executor.Do(ctx, "odds.save_snapshots", a.cfg.Policy, func(ctx context.Context) error {
			return a.cfg.Odds.SaveBatch(ctx, snaps)
		})
		if err != nil {
			return fmt.Errorf("failed to save odds snapshots: %w", err)
		}

		for _, s := range snaps {
			metrics.OddsSnapshotsIngested.WithLabelValues(league, s.Book).Inc()
		}
	}

	newCursor := &domain.FeedCursor{League: league, LastSeen: capturedAt}
	if err := a.cfg.Cursors.Save(ctx, newCursor); err != nil {
		return fmt.Errorf("failed to save feed cursor: %w", err)
	}

	a.cfg.Log.Debug("league ingested", "league", league, "games", len(page.Games), "snapshots", len(snaps))
	return nil
}

// convertGame validates one feed row and maps it into domain types. Bad rows
// are reported, never retried.
func convertGame(fg FeedGame, capturedAt time.Time) (*domain.Game, []*domain.OddsSnapshot, error) {
	if fg.ID == "" {
		return nil, nil, errors.New("feed game missing id")
	}
	if fg.HomeTeam == "" || fg.AwayTeam == "" {
		return nil, nil, fmt.Errorf("feed game %s missing team names", fg.ID)
	}

	status := domain.GameStatus(fg.Status)
	switch status {
	case domain.GameStatusScheduled, domain.GameStatusLive, domain.GameStatusFinal, domain.GameStatusCanceled:
	default:
		return nil, nil, fmt.Errorf("feed game %s has unknown status %q", fg.ID, fg.Status)
	}

	game := &domain.Game{
		ID:        fg.ID,
		League:    fg.League,
		HomeTeam:  fg.HomeTeam,
		AwayTeam:  fg.AwayTeam,
		StartsAt:  fg.StartsAt,
		Status:    status,
		HomeScore: fg.HomeScore,
		AwayScore: fg.AwayScore,
	}

	snaps := make([]*domain.OddsSnapshot, 0, len(fg.Lines))
	for _, line := range fg.Lines {
		market := domain.Market(line.Market)
		switch market {
		case domain.MarketMoneyline, domain.MarketSpread, domain.MarketTotal:
		default:
			return nil, nil, fmt.Errorf("feed game %s has unknown market %q", fg.ID, line.Market)
		}
		snaps = append(snaps, &domain.OddsSnapshot{
			ID:         agents.NewID(),
			GameID:     fg.ID,
			Book:       line.Book,
			Market:     market,
			Line:       line.Line,
			HomePrice:  line.HomePrice,
			AwayPrice:  line.AwayPrice,
			CapturedAt: capturedAt,
		})
	}
	return game, snaps, nil
}

func (a *Agent) recordBadRow(ctx context.Context, ref string, cause error) {
	a.cfg.Log.Warn("skipping malformed feed row", "ref", ref, "error", cause)
	finding := &domain.AuditFinding{
		ID:         agents.NewID(),
		Kind:       domain.AuditBadFeedRow,
		TableName:  "games",
		RowRef:     ref,
		Detail:     cause.Error(),
		DetectedAt: time.Now(),
	}
	if err := a.cfg.Audit.Add(ctx, finding); err != nil {
		a.cfg.Log.Error("failed to record audit finding", "ref", ref, "error", err)
	}
}
