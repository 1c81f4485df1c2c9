package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reconciliation-service/internal/domain"
)

// TransactionRepository persists the normalized transactions of a run.
type TransactionRepository interface {
	// CreateBatch bulk-loads a run's transactions with COPY. Match
	// references must already be stamped; rows never change afterwards.
	CreateBatch(ctx context.Context, tx pgx.Tx, txns []*domain.Transaction) error
	ListByRun(ctx context.Context, runID string) ([]*domain.Transaction, error)
}

type transactionRepo struct {
	db *pgxpool.Pool
}

func NewTransactionRepo(db *pgxpool.Pool) TransactionRepository {
	return &transactionRepo{db: db}
}

func (r *transactionRepo) CreateBatch(ctx context.Context, tx pgx.Tx, txns []*domain.Transaction) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}
	if len(txns) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(txns))
	for _, t := range txns {
		rows = append(rows, []any{
			t.ID, t.RunID, t.AccountCode, t.Date, t.Amount, t.Description, t.Source, t.MatchID,
		})
	}

	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{"run_transactions"},
		[]string{"id", "run_id", "account_code", "txn_date", "amount", "description", "source", "match_id"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy run transactions: %w", err)
	}
	if copied != int64(len(txns)) {
		return fmt.Errorf("copied %d of %d run transactions", copied, len(txns))
	}
	return nil
}

func (r *transactionRepo) ListByRun(ctx context.Context, runID string) ([]*domain.Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, run_id, account_code, txn_date, amount, description, source, match_id
		FROM run_transactions
		WHERE run_id=$1
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run transactions: %w", err)
	}
	defer rows.Close()

	var txns []*domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(
			&t.ID, &t.RunID, &t.AccountCode, &t.Date, &t.Amount, &t.Description, &t.Source, &t.MatchID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run transaction: %w", err)
		}
		txns = append(txns, &t)
	}
	return txns, rows.Err()
}
