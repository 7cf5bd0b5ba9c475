package storage

import (
	"context"
	"errors"
	"time"

	"github.com/pickflow/pickflow/internal/core/domain"
)

var (
	// ErrNotFound is returned when a row doesn't exist
	ErrNotFound = errors.New("row not found")
)

// GameRepository handles game storage operations
type GameRepository interface {
	// Upsert inserts or refreshes a game by id
	Upsert(ctx context.Context, game *domain.Game) error

	// GetByID retrieves a game
	GetByID(ctx context.Context, id string) (*domain.Game, error)

	// ListFinalWithPendingPicks returns final games that still have ungraded picks
	ListFinalWithPendingPicks(ctx context.Context) ([]*domain.Game, error)
}

// PickRepository handles pick storage operations
type PickRepository interface {
	// Save inserts a pick
	Save(ctx context.Context, pick *domain.Pick) error

	// GetByID retrieves a pick
	GetByID(ctx context.Context, id string) (*domain.Pick, error)

	// ListPendingByGame returns ungraded picks for a game
	ListPendingByGame(ctx context.Context, gameID string) ([]*domain.Pick, error)

	// SetGrade records the grading result for a pick
	SetGrade(ctx context.Context, id string, status domain.PickStatus, gradedAt time.Time) error

	// ListOrphaned returns picks whose game row is missing
	ListOrphaned(ctx context.Context) ([]*domain.Pick, error)

	// ListStalePending returns pending picks on games final for longer than cutoff
	ListStalePending(ctx context.Context, cutoff time.Time) ([]*domain.Pick, error)

	// ListGradeConflicts returns picks whose status and graded timestamp disagree
	ListGradeConflicts(ctx context.Context) ([]*domain.Pick, error)
}

// OddsRepository handles odds snapshot storage
type OddsRepository interface {
	// SaveBatch inserts a batch of snapshots
	SaveBatch(ctx context.Context, snaps []*domain.OddsSnapshot) error

	// Latest returns the newest snapshot for a game market
	Latest(ctx context.Context, gameID string, market domain.Market) (*domain.OddsSnapshot, error)
}

// CursorRepository tracks per-league feed ingestion progress
type CursorRepository interface {
	// Get retrieves the cursor for a league
	Get(ctx context.Context, league string) (*domain.FeedCursor, error)

	// Save saves/updates the cursor
	Save(ctx context.Context, cursor *domain.FeedCursor) error
}

// UserRepository handles user and onboarding storage
type UserRepository interface {
	// GetByID retrieves a user
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// Save inserts a user
	Save(ctx context.Context, user *domain.User) error

	// ListByStep returns users currently on a step
	ListByStep(ctx context.Context, step domain.OnboardingStep) ([]*domain.User, error)

	// AdvanceStep moves a user to the next onboarding step
	AdvanceStep(ctx context.Context, id string, step domain.OnboardingStep, at time.Time) error
}

// NotificationRepository is the delivery outbox
type NotificationRepository interface {
	// Enqueue inserts outbox rows
	Enqueue(ctx context.Context, notes ...*domain.Notification) error

	// ListPending returns pending rows, oldest first
	ListPending(ctx context.Context, limit int) ([]*domain.Notification, error)

	// MarkSent marks a row delivered
	MarkSent(ctx context.Context, id string, at time.Time) error

	// MarkFailed records a failed attempt; rows past the attempt cap move to dead
	MarkFailed(ctx context.Context, id string, attempts int, lastError string, dead bool) error

	// CountByStatus returns outbox depth per channel for a status
	CountByStatus(ctx context.Context, status domain.NotificationStatus) (map[domain.ChannelKind]int, error)

	// ListDeadOlderThan returns dead rows past a retention cutoff
	ListDeadOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.Notification, error)
}

// AuditRepository stores integrity findings
type AuditRepository interface {
	// Add records a finding
	Add(ctx context.Context, finding *domain.AuditFinding) error

	// ListOpen returns unresolved findings
	ListOpen(ctx context.Context) ([]*domain.AuditFinding, error)

	// Resolve closes a finding
	Resolve(ctx context.Context, id string, at time.Time) error
}
