package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pickflow/pickflow/internal/core/domain"
	"github.com/pickflow/pickflow/internal/infra/storage"
)

// OddsRepo implements storage.OddsRepository using PostgreSQL.
type OddsRepo struct {
	db *DB
}

// NewOddsRepo creates a new PostgreSQL odds repository.
func NewOddsRepo(db *DB) *OddsRepo {
	return &OddsRepo{db: db}
}

// SaveBatch inserts a batch of snapshots.
func (r *OddsRepo) SaveBatch(ctx context.Context, snaps []*domain.OddsSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	query := `
		INSERT INTO odds_snapshots (id, game_id, book, market, line, home_price, away_price, captured_at)
		VALUES (:id, :game_id, :book, :market, :line, :home_price, :away_price, :captured_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, snaps); err != nil {
		return fmt.Errorf("failed to save odds batch: %w", err)
	}
	return nil
}

// Latest returns the newest snapshot for a game market.
func (r *OddsRepo) Latest(
	ctx context.Context,
	gameID string,
	market domain.Market,
) (*domain.OddsSnapshot, error) {
	var snap domain.OddsSnapshot
	query := `
		SELECT * FROM odds_snapshots
		WHERE game_id = $1 AND market = $2
		ORDER BY captured_at DESC LIMIT 1
	`
	err := r.db.GetContext(ctx, &snap, query, gameID, market)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest odds: %w", err)
	}
	return &snap, nil
}
