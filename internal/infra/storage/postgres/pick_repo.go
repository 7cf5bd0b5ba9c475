package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pickflow/pickflow/internal/core/domain"
	"github.com/pickflow/pickflow/internal/infra/storage"
)

// PickRepo implements storage.PickRepository using PostgreSQL.
type PickRepo struct {
	db *DB
}

// NewPickRepo creates a new PostgreSQL pick repository.
func NewPickRepo(db *DB) *PickRepo {
	return &PickRepo{db: db}
}

// Save inserts a pick.
func (r *PickRepo) Save(ctx context.Context, pick *domain.Pick) error {
	query := `
		INSERT INTO picks (id, user_id, game_id, market, side, line, price, units, status, placed_at)
		VALUES (:id, :user_id, :game_id, :market, :side, :line, :price, :units, :status, :placed_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, pick); err != nil {
		return fmt.Errorf("failed to save pick: %w", err)
	}
	return nil
}

// GetByID retrieves a pick.
func (r *PickRepo) GetByID(ctx context.Context, id string) (*domain.Pick, error) {
	var pick domain.Pick
	err := r.db.GetContext(ctx, &pick, `SELECT * FROM picks WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pick: %w", err)
	}
	return &pick, nil
}

// ListPendingByGame returns ungraded picks for a game.
func (r *PickRepo) ListPendingByGame(ctx context.Context, gameID string) ([]*domain.Pick, error) {
	var picks []*domain.Pick
	query := `SELECT * FROM picks WHERE game_id = $1 AND status = 'pending' ORDER BY placed_at ASC`
	if err := r.db.SelectContext(ctx, &picks, query, gameID); err != nil {
		return nil, fmt.Errorf("failed to list pending picks: %w", err)
	}
	return picks, nil
}

// SetGrade records the grading result for a pick. Only pending picks are
// graded; a second grade of the same pick is a no-op.
func (r *PickRepo) SetGrade(
	ctx context.Context,
	id string,
	status domain.PickStatus,
	gradedAt time.Time,
) error {
	query := `UPDATE picks SET status = $2, graded_at = $3 WHERE id = $1 AND status = 'pending'`
	if _, err := r.db.ExecContext(ctx, query, id, status, gradedAt); err != nil {
		return fmt.Errorf("failed to grade pick %s: %w", id, err)
	}
	return nil
}

// ListOrphaned returns picks whose game row is missing.
func (r *PickRepo) ListOrphaned(ctx context.Context) ([]*domain.Pick, error) {
	query := `
		SELECT p.* FROM picks p
		LEFT JOIN games g ON g.id = p.game_id
		WHERE g.id IS NULL
	`
	var picks []*domain.Pick
	if err := r.db.SelectContext(ctx, &picks, query); err != nil {
		return nil, fmt.Errorf("failed to list orphaned picks: %w", err)
	}
	return picks, nil
}

// ListStalePending returns pending picks on games that went final before cutoff.
func (r *PickRepo) ListStalePending(ctx context.Context, cutoff time.Time) ([]*domain.Pick, error) {
	query := `
		SELECT p.* FROM picks p
		JOIN games g ON g.id = p.game_id
		WHERE p.status = 'pending' AND g.status = 'final' AND g.updated_at < $1
	`
	var picks []*domain.Pick
	if err := r.db.SelectContext(ctx, &picks, query, cutoff); err != nil {
		return nil, fmt.Errorf("failed to list stale picks: %w", err)
	}
	return picks, nil
}

// ListGradeConflicts returns picks whose status and graded timestamp disagree.
// A settled pick without a timestamp, or a pending pick with one, means two
// writers raced on the grade.
func (r *PickRepo) ListGradeConflicts(ctx context.Context) ([]*domain.Pick, error) {
	query := `
		SELECT * FROM picks
		WHERE (status <> 'pending' AND graded_at IS NULL)
		   OR (status = 'pending' AND graded_at IS NOT NULL)
	`
	var picks []*domain.Pick
	if err := r.db.SelectContext(ctx, &picks, query); err != nil {
		return nil, fmt.Errorf("failed to list grade conflicts: %w", err)
	}
	return picks, nil
}
