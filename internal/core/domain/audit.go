package domain

import "time"

// AuditKind classifies an integrity finding.
type AuditKind string

const (
	AuditOrphanPick     AuditKind = "orphan_pick"
	AuditStalePick      AuditKind = "stale_pick"
	AuditDuplicateGrade AuditKind = "duplicate_grade"
	AuditDeadOutbox     AuditKind = "dead_outbox"
	AuditBadFeedRow     AuditKind = "bad_feed_row"
)

// AuditFinding records one integrity problem detected by the audit sweep.
type AuditFinding struct {
	ID         string     `db:"id"          json:"id"`
	Kind       AuditKind  `db:"kind"        json:"kind"`
	TableName  string     `db:"table_name"  json:"table_name"`
	RowRef     string     `db:"row_ref"     json:"row_ref"`
	Detail     string     `db:"detail"      json:"detail"`
	DetectedAt time.Time  `db:"detected_at" json:"detected_at"`
	ResolvedAt *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

// Resolved reports whether the finding has been closed out.
func (f *AuditFinding) Resolved() bool {
	return f.ResolvedAt != nil
}
