// Package audit runs the periodic data integrity sweep. Each tick checks the
// pick and outbox tables for rows that should not exist, records a finding
// for every problem, and announces new problems to the ops channels.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pickflow/pickflow/internal/agents"
	"github.com/pickflow/pickflow/internal/core/domain"
	"github.com/pickflow/pickflow/internal/infra/storage"
	"github.com/pickflow/pickflow/internal/metrics"
	"github.com/pickflow/pickflow/internal/retry"
)

// Config holds audit agent dependencies.
type Config struct {
	Picks    storage.PickRepository
	Outbox   storage.NotificationRepository
	Audit    storage.AuditRepository
	Composer *agents.Composer
	Executor *retry.Executor
	Policy   retry.Policy

	// StaleAfter is how long a pending pick may sit on a final game before
	// it counts as stuck.
	StaleAfter time.Duration

	// DeadRetention is how long dead outbox rows may linger before they are
	// flagged for cleanup.
	DeadRetention time.Duration

	Interval time.Duration
	Log      *slog.Logger
}

// Agent sweeps for integrity problems on an interval.
type Agent struct {
	cfg     Config
	loop    *agents.Loop
	tracker agents.Tracker
}

// New creates the audit agent.
func New(cfg Config) *Agent {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Agent{
		cfg:  cfg,
		loop: agents.NewLoop("audit", cfg.Interval, cfg.Log),
	}
}

func (a *Agent) Name() string { return "audit" }

// Start runs the sweep loop. Blocks until ctx is done or Stop is called.
func (a *Agent) Start(ctx context.Context) error {
	return a.loop.Run(ctx, &a.tracker, a.tick)
}

// Stop signals the loop to exit.
func (a *Agent) Stop() error {
	a.loop.Halt()
	return nil
}

// Health reports the agent's last sweep outcome.
func (a *Agent) Health() agents.Status {
	return a.tracker.Snapshot(a.Name())
}

func (a *Agent) tick(ctx context.Context) error {
	found := 0

	n, err := a.sweepOrphans(ctx)
	if err != nil {
		return err
	}
	found += n

	n, err = a.sweepStale(ctx)
	if err != nil {
		return err
	}
	found += n

	n, err = a.sweepGradeConflicts(ctx)
	if err != nil {
		return err
	}
	found += n

	n, err = a.sweepDeadOutbox(ctx)
	if err != nil {
		return err
	}
	found += n

	if err := a.publishGauges(ctx); err != nil {
		return err
	}

	if found > 0 {
		subject := "Data integrity sweep found problems"
		body := fmt.Sprintf("%d integrity problem(s) detected, see audit findings", found)
		if err := a.cfg.Composer.Announce(ctx, subject, body); err != nil {
			a.cfg.Log.Warn("failed to announce audit findings", "error", err)
		}
	}
	return nil
}

// sweepOrphans flags picks whose game row was never ingested.
func (a *Agent) sweepOrphans(ctx context.Context) (int, error) {
	picks, err := retry.DoValue(ctx, a.cfg.Executor, "audit.list_orphans", a.cfg.Policy,
		func(ctx context.Context) ([]*domain.Pick, error) {
			return a.cfg.Picks.ListOrphaned(ctx)
		})
	if err != nil {
		return 0, fmt.Errorf("failed to list orphaned picks: %w", err)
	}

	for _, p := range picks {
		a.record(ctx, domain.AuditOrphanPick, "picks", p.ID,
			fmt.Sprintf("pick references missing game %s", p.GameID))
	}
	return len(picks), nil
}

// sweepStale flags pending picks on games that finished long ago. The grader
// should have settled these; a stale pick means it keeps failing or the game
// row is wedged.
func (a *Agent) sweepStale(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-a.cfg.StaleAfter)
	picks, err := retry.DoValue(ctx, a.cfg.Executor, "audit.list_stale", a.cfg.Policy,
		func(ctx context.Context) ([]*domain.Pick, error) {
			return a.cfg.Picks.ListStalePending(ctx, cutoff)
		})
	if err != nil {
		return 0, fmt.Errorf("failed to list stale picks: %w", err)
	}

	for _, p := range picks {
		a.record(ctx, domain.AuditStalePick, "picks", p.ID,
			fmt.Sprintf("pick still pending on final game %s", p.GameID))
	}
	return len(picks), nil
}

// sweepGradeConflicts flags picks whose status and graded timestamp disagree.
func (a *Agent) sweepGradeConflicts(ctx context.Context) (int, error) {
	picks, err := retry.DoValue(ctx, a.cfg.Executor, "audit.list_grade_conflicts", a.cfg.Policy,
		func(ctx context.Context) ([]*domain.Pick, error) {
			return a.cfg.Picks.ListGradeConflicts(ctx)
		})
	if err != nil {
		return 0, fmt.Errorf("failed to list grade conflicts: %w", err)
	}

	for _, p := range picks {
		a.record(ctx, domain.AuditDuplicateGrade, "picks", p.ID,
			fmt.Sprintf("grade state conflict: status=%s graded_at set=%t", p.Status, p.GradedAt != nil))
	}
	return len(picks), nil
}

// sweepDeadOutbox flags dead notifications past the retention window so an
// operator can decide whether to requeue or purge them.
func (a *Agent) sweepDeadOutbox(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-a.cfg.DeadRetention)
	notes, err := retry.DoValue(ctx, a.cfg.Executor, "audit.list_dead_outbox", a.cfg.Policy,
		func(ctx context.Context) ([]*domain.Notification, error) {
			return a.cfg.Outbox.ListDeadOlderThan(ctx, cutoff)
		})
	if err != nil {
		return 0, fmt.Errorf("failed to list dead outbox rows: %w", err)
	}

	for _, n := range notes {
		a.record(ctx, domain.AuditDeadOutbox, "notifications", n.ID,
			fmt.Sprintf("dead %s notification past retention: %s", n.Channel, n.LastError))
	}
	return len(notes), nil
}

// publishGauges refreshes the open-findings gauge per kind.
func (a *Agent) publishGauges(ctx context.Context) error {
	open, err := a.cfg.Audit.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("failed to list open findings: %w", err)
	}

	counts := map[domain.AuditKind]int{
		domain.AuditOrphanPick:     0,
		domain.AuditStalePick:      0,
		domain.AuditDuplicateGrade: 0,
		domain.AuditDeadOutbox:     0,
		domain.AuditBadFeedRow:     0,
	}
	for _, f := range open {
		counts[f.Kind]++
	}
	for kind, n := range counts {
		metrics.AuditFindingsOpen.WithLabelValues(string(kind)).Set(float64(n))
	}
	return nil
}

func (a *Agent) record(ctx context.Context, kind domain.AuditKind, table, ref, detail string) {
	finding := &domain.AuditFinding{
		ID:         agents.NewID(),
		Kind:       kind,
		TableName:  table,
		RowRef:     ref,
		Detail:     detail,
		DetectedAt: time.Now(),
	}
	if err := a.cfg.Audit.Add(ctx, finding); err != nil {
		a.cfg.Log.Error("failed to record finding", "kind", kind, "row", ref, "error", err)
	}
}
