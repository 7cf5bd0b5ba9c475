package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/pickflow/pickflow/internal/core/domain"
)

// AuditRepo implements storage.AuditRepository using PostgreSQL.
type AuditRepo struct {
	db *DB
}

// NewAuditRepo creates a new PostgreSQL audit repository.
func NewAuditRepo(db *DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Add records a finding. An open finding with the same kind and row ref is
// left untouched so repeated sweeps don't pile up duplicates.
func (r *AuditRepo) Add(ctx context.Context, finding *domain.AuditFinding) error {
	query := `
		INSERT INTO audit_findings (id, kind, table_name, row_ref, detail, detected_at)
		SELECT :id, :kind, :table_name, :row_ref, :detail, :detected_at
		WHERE NOT EXISTS (
			SELECT 1 FROM audit_findings
			WHERE kind = :kind AND row_ref = :row_ref AND resolved_at IS NULL
		)
	`
	if _, err := r.db.NamedExecContext(ctx, query, finding); err != nil {
		return fmt.Errorf("failed to add audit finding: %w", err)
	}
	return nil
}

// ListOpen returns unresolved findings.
func (r *AuditRepo) ListOpen(ctx context.Context) ([]*domain.AuditFinding, error) {
	var findings []*domain.AuditFinding
	query := `SELECT * FROM audit_findings WHERE resolved_at IS NULL ORDER BY detected_at ASC`
	if err := r.db.SelectContext(ctx, &findings, query); err != nil {
		return nil, fmt.Errorf("failed to list audit findings: %w", err)
	}
	return findings, nil
}

// Resolve closes a finding.
func (r *AuditRepo) Resolve(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE audit_findings SET resolved_at = $2 WHERE id = $1 AND resolved_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("failed to resolve audit finding: %w", err)
	}
	return nil
}
