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

// UserRepo implements storage.UserRepository using PostgreSQL.
type UserRepo struct {
	db *DB
}

// NewUserRepo creates a new PostgreSQL user repository.
func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetByID retrieves a user.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// Save inserts a user.
func (r *UserRepo) Save(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, phone, discord_id, step, email_verified, funded, created_at, step_changed_at)
		VALUES (:id, :email, :phone, :discord_id, :step, :email_verified, :funded, :created_at, :step_changed_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// ListByStep returns users currently on a step.
func (r *UserRepo) ListByStep(
	ctx context.Context,
	step domain.OnboardingStep,
) ([]*domain.User, error) {
	var users []*domain.User
	query := `SELECT * FROM users WHERE step = $1 ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &users, query, step); err != nil {
		return nil, fmt.Errorf("failed to list users by step: %w", err)
	}
	return users, nil
}

// AdvanceStep moves a user to the next onboarding step.
func (r *UserRepo) AdvanceStep(
	ctx context.Context,
	id string,
	step domain.OnboardingStep,
	at time.Time,
) error {
	query := `UPDATE users SET step = $2, step_changed_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, step, at)
	if err != nil {
		return fmt.Errorf("failed to advance user %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
