package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pickflow/pickflow/internal/core/domain"
	"github.com/pickflow/pickflow/internal/infra/storage"
)

// CursorRepo implements storage.CursorRepository using PostgreSQL.
type CursorRepo struct {
	db *DB
}

// NewCursorRepo creates a new PostgreSQL cursor repository.
func NewCursorRepo(db *DB) *CursorRepo {
	return &CursorRepo{db: db}
}

// Get retrieves the feed cursor for a league.
func (r *CursorRepo) Get(ctx context.Context, league string) (*domain.FeedCursor, error) {
	var cursor domain.FeedCursor
	err := r.db.GetContext(ctx, &cursor, `SELECT * FROM feed_cursors WHERE league = $1`, league)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed cursor: %w", err)
	}
	return &cursor, nil
}

// Save saves/updates the cursor.
func (r *CursorRepo) Save(ctx context.Context, cursor *domain.FeedCursor) error {
	query := `
		INSERT INTO feed_cursors (league, last_seen, updated_at)
		VALUES (:league, :last_seen, NOW())
		ON CONFLICT (league) DO UPDATE SET
			last_seen = EXCLUDED.last_seen,
			updated_at = NOW()
	`
	if _, err := r.db.NamedExecContext(ctx, query, cursor); err != nil {
		return fmt.Errorf("failed to save feed cursor: %w", err)
	}
	return nil
}
