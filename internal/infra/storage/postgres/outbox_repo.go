package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/pickflow/pickflow/internal/core/domain"
)

// OutboxRepo implements storage.NotificationRepository using PostgreSQL.
type OutboxRepo struct {
	db *DB
}

// NewOutboxRepo creates a new PostgreSQL notification outbox.
func NewOutboxRepo(db *DB) *OutboxRepo {
	return &OutboxRepo{db: db}
}

// Enqueue inserts outbox rows.
func (r *OutboxRepo) Enqueue(ctx context.Context, notes ...*domain.Notification) error {
	if len(notes) == 0 {
		return nil
	}
	query := `
		INSERT INTO notifications (id, channel, user_id, recipient, subject, body, status, attempts, last_error, created_at)
		VALUES (:id, :channel, :user_id, :recipient, :subject, :body, :status, :attempts, :last_error, :created_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, notes); err != nil {
		return fmt.Errorf("failed to enqueue notifications: %w", err)
	}
	return nil
}

// ListPending returns pending rows, oldest first.
func (r *OutboxRepo) ListPending(ctx context.Context, limit int) ([]*domain.Notification, error) {
	var notes []*domain.Notification
	query := `SELECT * FROM notifications WHERE status = 'pending' ORDER BY created_at ASC LIMIT $1`
	if err := r.db.SelectContext(ctx, &notes, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list pending notifications: %w", err)
	}
	return notes, nil
}

// MarkSent marks a row delivered.
func (r *OutboxRepo) MarkSent(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE notifications SET status = 'sent', sent_at = $2, attempts = attempts + 1 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return nil
}

// MarkFailed records a failed attempt; dead rows leave the dispatch rotation.
func (r *OutboxRepo) MarkFailed(
	ctx context.Context,
	id string,
	attempts int,
	lastError string,
	dead bool,
) error {
	status := domain.NotificationPending
	if dead {
		status = domain.NotificationDead
	}
	query := `UPDATE notifications SET status = $2, attempts = $3, last_error = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, attempts, lastError); err != nil {
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	return nil
}

// CountByStatus returns outbox depth per channel for a status.
func (r *OutboxRepo) CountByStatus(
	ctx context.Context,
	status domain.NotificationStatus,
) (map[domain.ChannelKind]int, error) {
	rows := []struct {
		Channel domain.ChannelKind `db:"channel"`
		Count   int                `db:"count"`
	}{}
	query := `SELECT channel, COUNT(*) AS count FROM notifications WHERE status = $1 GROUP BY channel`
	if err := r.db.SelectContext(ctx, &rows, query, status); err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}

	out := make(map[domain.ChannelKind]int, len(rows))
	for _, row := range rows {
		out[row.Channel] = row.Count
	}
	return out, nil
}

// ListDeadOlderThan returns dead rows past a retention cutoff.
func (r *OutboxRepo) ListDeadOlderThan(
	ctx context.Context,
	cutoff time.Time,
) ([]*domain.Notification, error) {
	var notes []*domain.Notification
	query := `SELECT * FROM notifications WHERE status = 'dead' AND created_at < $1`
	if err := r.db.SelectContext(ctx, &notes, query, cutoff); err != nil {
		return nil, fmt.Errorf("failed to list dead notifications: %w", err)
	}
	return notes, nil
}
