package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reconciliation-service/internal/domain"
	"reconciliation-service/pkg/xerrors"
)

// RunRepository persists reconciliation run headers and their state
// machine transitions.
type RunRepository interface {
	Create(ctx context.Context, run *domain.ReconciliationRun) error
	GetByID(ctx context.Context, runID string) (*domain.ReconciliationRun, error)
	List(ctx context.Context, limit int) ([]*domain.ReconciliationRun, error)

	// State transitions
	UpdateStatus(ctx context.Context, runID string, from, to domain.RunStatus) error
	FinalizeTx(ctx context.Context, tx pgx.Tx, run *domain.ReconciliationRun) error
	Abort(ctx context.Context, runID string, reason string) error
}

type runRepo struct {
	db *pgxpool.Pool
}

func NewRunRepo(db *pgxpool.Pool) RunRepository {
	return &runRepo{db: db}
}

const baseRunQuery = `
	SELECT run_id, status, COALESCE(result, ''), total_debits, total_credits, imbalance_amount,
	       txn_count, matched_count, variance_count, ambiguity_count,
	       COALESCE(warnings, '{}'), COALESCE(error, ''), created_at, completed_at
	FROM reconciliation_runs`

func scanRun(row pgx.Row) (*domain.ReconciliationRun, error) {
	var run domain.ReconciliationRun
	err := row.Scan(
		&run.RunID, &run.Status, &run.Result, &run.Debits, &run.Credits, &run.Imbalance,
		&run.TxnCount, &run.Matched, &run.Variances, &run.Ambiguities,
		&run.Warnings, &run.Error, &run.CreatedAt, &run.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	return &run, nil
}

func (r *runRepo) Create(ctx context.Context, run *domain.ReconciliationRun) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO reconciliation_runs
			(run_id, status, total_debits, total_credits, imbalance_amount,
			 txn_count, matched_count, variance_count, ambiguity_count, created_at)
		VALUES ($1,$2,0,0,0,$3,0,0,0,$4)
	`, run.RunID, run.Status, run.TxnCount, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.RunID, err)
	}
	return nil
}

func (r *runRepo) GetByID(ctx context.Context, runID string) (*domain.ReconciliationRun, error) {
	row := r.db.QueryRow(ctx, baseRunQuery+` WHERE run_id=$1`, runID)
	return scanRun(row)
}

func (r *runRepo) List(ctx context.Context, limit int) ([]*domain.ReconciliationRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, baseRunQuery+` ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.ReconciliationRun
	for rows.Next() {
		var run domain.ReconciliationRun
		if err := rows.Scan(
			&run.RunID, &run.Status, &run.Result, &run.Debits, &run.Credits, &run.Imbalance,
			&run.TxnCount, &run.Matched, &run.Variances, &run.Ambiguities,
			&run.Warnings, &run.Error, &run.CreatedAt, &run.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// UpdateStatus moves the run one step forward. The WHERE clause pins
// the expected current status, so an illegal or stale transition
// touches no rows and comes back as ErrInvalidTransition.
func (r *runRepo) UpdateStatus(ctx context.Context, runID string, from, to domain.RunStatus) error {
	if !from.CanTransition(to) {
		return xerrors.ErrInvalidTransition
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE reconciliation_runs SET status=$3 WHERE run_id=$1 AND status=$2
	`, runID, from, to)
	if err != nil {
		return fmt.Errorf("failed to update run %s status: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrInvalidTransition
	}
	return nil
}

// FinalizeTx writes the terminal snapshot of a completed run.
func (r *runRepo) FinalizeTx(ctx context.Context, tx pgx.Tx, run *domain.ReconciliationRun) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}
	tag, err := tx.Exec(ctx, `
		UPDATE reconciliation_runs
		SET status=$2, result=$3, total_debits=$4, total_credits=$5, imbalance_amount=$6,
		    matched_count=$7, variance_count=$8, ambiguity_count=$9,
		    warnings=$10, completed_at=$11
		WHERE run_id=$1
	`, run.RunID, run.Status, run.Result, run.Debits, run.Credits, run.Imbalance,
		run.Matched, run.Variances, run.Ambiguities, run.Warnings, run.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to finalize run %s: %w", run.RunID, err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrRunNotFound
	}
	return nil
}

// Abort marks a discarded run. Partial results are never kept.
func (r *runRepo) Abort(ctx context.Context, runID string, reason string) error {
	now := time.Now().UTC()
	_, err := r.db.Exec(ctx, `
		UPDATE reconciliation_runs SET status=$2, error=$3, completed_at=$4 WHERE run_id=$1
	`, runID, domain.RunAborted, reason, now)
	if err != nil {
		return fmt.Errorf("failed to abort run %s: %w", runID, err)
	}
	return nil
}
