package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pickflow/pickflow/internal/core/domain"
	"github.com/pickflow/pickflow/internal/infra/storage"
)

// GameRepo implements storage.GameRepository using PostgreSQL.
type GameRepo struct {
	db *DB
}

// NewGameRepo creates a new PostgreSQL game repository.
func NewGameRepo(db *DB) *GameRepo {
	return &GameRepo{db: db}
}

// Upsert inserts or refreshes a game by id.
func (r *GameRepo) Upsert(ctx context.Context, game *domain.Game) error {
	query := `
		INSERT INTO games (id, league, home_team, away_team, starts_at, status, home_score, away_score, updated_at)
		VALUES (:id, :league, :home_team, :away_team, :starts_at, :status, :home_score, :away_score, NOW())
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			home_score = EXCLUDED.home_score,
			away_score = EXCLUDED.away_score,
			starts_at = EXCLUDED.starts_at,
			updated_at = NOW()
	`
	if _, err := r.db.NamedExecContext(ctx, query, game); err != nil {
		return fmt.Errorf("failed to upsert game: %w", err)
	}
	return nil
}

// GetByID retrieves a game.
func (r *GameRepo) GetByID(ctx context.Context, id string) (*domain.Game, error) {
	var game domain.Game
	err := r.db.GetContext(ctx, &game, `SELECT * FROM games WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return &game, nil
}

// ListFinalWithPendingPicks returns final games that still have ungraded picks.
func (r *GameRepo) ListFinalWithPendingPicks(ctx context.Context) ([]*domain.Game, error) {
	query := `
		SELECT DISTINCT g.* FROM games g
		JOIN picks p ON p.game_id = g.id
		WHERE g.status IN ('final', 'canceled') AND p.status = 'pending'
		ORDER BY g.starts_at ASC
	`
	var games []*domain.Game
	if err := r.db.SelectContext(ctx, &games, query); err != nil {
		return nil, fmt.Errorf("failed to list gradable games: %w", err)
	}
	return games, nil
}
