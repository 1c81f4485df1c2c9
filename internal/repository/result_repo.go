package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reconciliation-service/internal/domain"
)

// ResultRepository persists the products of a completed run: accepted
// matches, classified variances and per-account balance reports. All
// writes happen inside the run's finalize transaction, so a run either
// lands in full or not at all.
type ResultRepository interface {
	CreateMatches(ctx context.Context, tx pgx.Tx, matches []*domain.MatchResult) error
	CreateVariances(ctx context.Context, tx pgx.Tx, variances []*domain.Variance) error
	CreateBalanceReports(ctx context.Context, tx pgx.Tx, reports []*domain.BalanceReport) error

	ListMatches(ctx context.Context, runID string) ([]*domain.MatchResult, error)
	ListVariances(ctx context.Context, runID string) ([]*domain.Variance, error)
	ListBalanceReports(ctx context.Context, runID string) ([]*domain.BalanceReport, error)

	// Account history across completed runs
	ListAccountVariances(ctx context.Context, code string, from, to time.Time) ([]*domain.Variance, error)
	ListAccountReports(ctx context.Context, code string, from, to time.Time) ([]*domain.BalanceReport, error)
}

type resultRepo struct {
	db *pgxpool.Pool
}

func NewResultRepo(db *pgxpool.Pool) ResultRepository {
	return &resultRepo{db: db}
}

func (r *resultRepo) CreateMatches(ctx context.Context, tx pgx.Tx, matches []*domain.MatchResult) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}
	if len(matches) == 0 {
		return nil
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, m := range matches {
		batch.Queue(`
			INSERT INTO match_results
				(id, run_id, account_code, ledger_txn_id, external_txn_id, amount_delta, day_delta, rationale, matched_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, m.ID, m.RunID, m.AccountCode, m.LedgerTxnID, m.ExternalTxnID, m.AmountDelta, m.DayDelta, m.Rationale, now)
		m.MatchedAt = now
	}

	br := tx.SendBatch(ctx, batch)
	defer br.Close()

	for range matches {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert match result: %w", err)
		}
	}
	return nil
}

func (r *resultRepo) CreateVariances(ctx context.Context, tx pgx.Tx, variances []*domain.Variance) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}
	if len(variances) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, v := range variances {
		batch.Queue(`
			INSERT INTO variances
				(run_id, txn_id, account_code, source, amount, category, resolution, detail)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			RETURNING id
		`, v.RunID, v.TxnID, v.AccountCode, v.Source, v.Amount, v.Category, v.Resolution, v.Detail)
	}

	br := tx.SendBatch(ctx, batch)
	defer br.Close()

	for _, v := range variances {
		if err := br.QueryRow().Scan(&v.ID); err != nil {
			return fmt.Errorf("failed to insert variance: %w", err)
		}
	}
	return nil
}

func (r *resultRepo) CreateBalanceReports(ctx context.Context, tx pgx.Tx, reports []*domain.BalanceReport) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}
	if len(reports) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rep := range reports {
		batch.Queue(`
			INSERT INTO balance_reports
				(run_id, account_code, total_debits, total_credits, net, txn_count, balanced)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			RETURNING id
		`, rep.RunID, rep.AccountCode, rep.Debits, rep.Credits, rep.Net, rep.TxnCount, rep.Balanced)
	}

	br := tx.SendBatch(ctx, batch)
	defer br.Close()

	for _, rep := range reports {
		if err := br.QueryRow().Scan(&rep.ID); err != nil {
			return fmt.Errorf("failed to insert balance report: %w", err)
		}
	}
	return nil
}

func (r *resultRepo) ListMatches(ctx context.Context, runID string) ([]*domain.MatchResult, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, run_id, account_code, ledger_txn_id, external_txn_id, amount_delta, day_delta, COALESCE(rationale, ''), matched_at
		FROM match_results
		WHERE run_id=$1
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query match results: %w", err)
	}
	defer rows.Close()

	var matches []*domain.MatchResult
	for rows.Next() {
		var m domain.MatchResult
		if err := rows.Scan(
			&m.ID, &m.RunID, &m.AccountCode, &m.LedgerTxnID, &m.ExternalTxnID,
			&m.AmountDelta, &m.DayDelta, &m.Rationale, &m.MatchedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan match result: %w", err)
		}
		matches = append(matches, &m)
	}
	return matches, rows.Err()
}

func (r *resultRepo) ListVariances(ctx context.Context, runID string) ([]*domain.Variance, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, run_id, txn_id, account_code, source, amount, category, resolution, COALESCE(detail, '')
		FROM variances
		WHERE run_id=$1
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query variances: %w", err)
	}
	defer rows.Close()

	var variances []*domain.Variance
	for rows.Next() {
		var v domain.Variance
		if err := rows.Scan(
			&v.ID, &v.RunID, &v.TxnID, &v.AccountCode, &v.Source,
			&v.Amount, &v.Category, &v.Resolution, &v.Detail,
		); err != nil {
			return nil, fmt.Errorf("failed to scan variance: %w", err)
		}
		variances = append(variances, &v)
	}
	return variances, rows.Err()
}

func (r *resultRepo) ListBalanceReports(ctx context.Context, runID string) ([]*domain.BalanceReport, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, run_id, account_code, total_debits, total_credits, net, txn_count, balanced
		FROM balance_reports
		WHERE run_id=$1
		ORDER BY account_code
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query balance reports: %w", err)
	}
	defer rows.Close()

	var reports []*domain.BalanceReport
	for rows.Next() {
		var rep domain.BalanceReport
		if err := rows.Scan(
			&rep.ID, &rep.RunID, &rep.AccountCode, &rep.Debits, &rep.Credits,
			&rep.Net, &rep.TxnCount, &rep.Balanced,
		); err != nil {
			return nil, fmt.Errorf("failed to scan balance report: %w", err)
		}
		reports = append(reports, &rep)
	}
	return reports, rows.Err()
}

// ListAccountVariances walks one account's variances across completed
// runs inside the window, oldest run first.
func (r *resultRepo) ListAccountVariances(ctx context.Context, code string, from, to time.Time) ([]*domain.Variance, error) {
	rows, err := r.db.Query(ctx, `
		SELECT v.id, v.run_id, v.txn_id, v.account_code, v.source, v.amount, v.category, v.resolution, COALESCE(v.detail, '')
		FROM variances v
		JOIN reconciliation_runs r ON r.run_id = v.run_id
		WHERE v.account_code=$1 AND r.status=$2 AND r.created_at BETWEEN $3 AND $4
		ORDER BY r.created_at, v.id
	`, code, domain.RunAudited, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query account variances: %w", err)
	}
	defer rows.Close()

	var variances []*domain.Variance
	for rows.Next() {
		var v domain.Variance
		if err := rows.Scan(
			&v.ID, &v.RunID, &v.TxnID, &v.AccountCode, &v.Source,
			&v.Amount, &v.Category, &v.Resolution, &v.Detail,
		); err != nil {
			return nil, fmt.Errorf("failed to scan variance: %w", err)
		}
		variances = append(variances, &v)
	}
	return variances, rows.Err()
}

func (r *resultRepo) ListAccountReports(ctx context.Context, code string, from, to time.Time) ([]*domain.BalanceReport, error) {
	rows, err := r.db.Query(ctx, `
		SELECT b.id, b.run_id, b.account_code, b.total_debits, b.total_credits, b.net, b.txn_count, b.balanced
		FROM balance_reports b
		JOIN reconciliation_runs r ON r.run_id = b.run_id
		WHERE b.account_code=$1 AND r.status=$2 AND r.created_at BETWEEN $3 AND $4
		ORDER BY r.created_at, b.id
	`, code, domain.RunAudited, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query account balance reports: %w", err)
	}
	defer rows.Close()

	var reports []*domain.BalanceReport
	for rows.Next() {
		var rep domain.BalanceReport
		if err := rows.Scan(
			&rep.ID, &rep.RunID, &rep.AccountCode, &rep.Debits, &rep.Credits,
			&rep.Net, &rep.TxnCount, &rep.Balanced,
		); err != nil {
			return nil, fmt.Errorf("failed to scan balance report: %w", err)
		}
		reports = append(reports, &rep)
	}
	return reports, rows.Err()
}
