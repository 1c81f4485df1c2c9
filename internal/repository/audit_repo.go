package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"reconciliation-service/internal/domain"
)

// AuditRepository is the durable sink for the append-only audit trail.
// UNIQUE(run_id, seq) backs the recorder's ordering guarantee at the
// storage layer; a violated constraint surfaces as a write failure and
// aborts the run rather than corrupting the trail.
type AuditRepository interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
	ListByRun(ctx context.Context, runID string) ([]*domain.AuditEntry, error)
}

type auditRepo struct {
	db *pgxpool.Pool
}

func NewAuditRepo(db *pgxpool.Pool) AuditRepository {
	return &auditRepo{db: db}
}

func (r *auditRepo) Append(ctx context.Context, entry *domain.AuditEntry) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO audit_entries
			(run_id, seq, operation, account_code, severity, before_digest, after_digest, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id
	`, entry.RunID, entry.Seq, entry.Operation, entry.AccountCode, entry.Severity,
		entry.BeforeDigest, entry.AfterDigest, entry.Detail, entry.Timestamp,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to append audit entry %d for run %s: %w", entry.Seq, entry.RunID, err)
	}
	return nil
}

func (r *auditRepo) ListByRun(ctx context.Context, runID string) ([]*domain.AuditEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, run_id, seq, operation, COALESCE(account_code, ''), severity,
		       COALESCE(before_digest, ''), COALESCE(after_digest, ''), COALESCE(detail, ''), created_at
		FROM audit_entries
		WHERE run_id=$1
		ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(
			&e.ID, &e.RunID, &e.Seq, &e.Operation, &e.AccountCode, &e.Severity,
			&e.BeforeDigest, &e.AfterDigest, &e.Detail, &e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
