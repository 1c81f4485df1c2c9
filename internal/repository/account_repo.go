package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"reconciliation-service/internal/domain"
	"reconciliation-service/pkg/xerrors"
)

// AccountRepository defines the interface for clearing-account persistence
type AccountRepository interface {
	// Single account queries
	GetByCode(ctx context.Context, code string) (*domain.Account, error)
	GetByCodeTx(ctx context.Context, code string, tx pgx.Tx) (*domain.Account, error)

	// Write operations
	Create(ctx context.Context, in *domain.AccountCreate) (*domain.Account, error)
	Upsert(ctx context.Context, tx pgx.Tx, in *domain.AccountCreate) (*domain.Account, error)
	UpdateThresholds(ctx context.Context, code string, threshold *decimal.Decimal, categories map[string]decimal.Decimal) (*domain.Account, error)

	// Listing
	GetByFilter(ctx context.Context, f *domain.AccountFilter) ([]*domain.Account, error)
}

type accountRepo struct {
	db *pgxpool.Pool
}

// NewAccountRepo creates a new account repository
func NewAccountRepo(db *pgxpool.Pool) AccountRepository {
	return &accountRepo{db: db}
}

const baseAccountQuery = `
	SELECT id, code, name, variance_threshold, category_thresholds,
	       is_active, created_at, updated_at
	FROM accounts`

// scanAccount scans a row into a domain.Account
func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(
		&a.ID, &a.Code, &a.Name, &a.VarianceThreshold, &a.CategoryThresholds,
		&a.IsActive, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	return &a, nil
}

func (r *accountRepo) GetByCode(ctx context.Context, code string) (*domain.Account, error) {
	row := r.db.QueryRow(ctx, baseAccountQuery+` WHERE code=$1`, code)
	return scanAccount(row)
}

func (r *accountRepo) GetByCodeTx(ctx context.Context, code string, tx pgx.Tx) (*domain.Account, error) {
	if tx == nil {
		return nil, errors.New("transaction cannot be nil")
	}
	row := tx.QueryRow(ctx, baseAccountQuery+` WHERE code=$1`, code)
	return scanAccount(row)
}

func (r *accountRepo) Create(ctx context.Context, in *domain.AccountCreate) (*domain.Account, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO accounts (code, name, variance_threshold, category_thresholds, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,true,$5,$5)
		RETURNING id, code, name, variance_threshold, category_thresholds, is_active, created_at, updated_at
	`, in.Code, in.Name, in.VarianceThreshold, in.CategoryThresholds, time.Now().UTC())

	a, err := scanAccount(row)
	if err != nil {
		if xerrors.ParsePGErrorCode(err) == "23505" {
			return nil, xerrors.ErrDuplicateAccount
		}
		return nil, err
	}
	return a, nil
}

// Upsert inserts the account or refreshes its name, leaving configured
// thresholds untouched. Used by the system seeder inside a transaction.
func (r *accountRepo) Upsert(ctx context.Context, tx pgx.Tx, in *domain.AccountCreate) (*domain.Account, error) {
	if tx == nil {
		return nil, errors.New("transaction cannot be nil")
	}
	row := tx.QueryRow(ctx, `
		INSERT INTO accounts (code, name, variance_threshold, category_thresholds, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,true,$5,$5)
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, updated_at = EXCLUDED.updated_at
		RETURNING id, code, name, variance_threshold, category_thresholds, is_active, created_at, updated_at
	`, in.Code, in.Name, in.VarianceThreshold, in.CategoryThresholds, time.Now().UTC())
	return scanAccount(row)
}

func (r *accountRepo) UpdateThresholds(ctx context.Context, code string, threshold *decimal.Decimal, categories map[string]decimal.Decimal) (*domain.Account, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE accounts
		SET variance_threshold=$2, category_thresholds=$3, updated_at=$4
		WHERE code=$1
		RETURNING id, code, name, variance_threshold, category_thresholds, is_active, created_at, updated_at
	`, code, threshold, categories, time.Now().UTC())
	return scanAccount(row)
}

func (r *accountRepo) GetByFilter(ctx context.Context, f *domain.AccountFilter) ([]*domain.Account, error) {
	query := baseAccountQuery + ` WHERE 1=1`
	args := []any{}
	idx := 1

	if f != nil && f.Code != nil {
		query += fmt.Sprintf(" AND code=$%d", idx)
		args = append(args, *f.Code)
		idx++
	}
	if f != nil && f.IsActive != nil {
		query += fmt.Sprintf(" AND is_active=$%d", idx)
		args = append(args, *f.IsActive)
		idx++
	}
	query += " ORDER BY code"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(
			&a.ID, &a.Code, &a.Name, &a.VarianceThreshold, &a.CategoryThresholds,
			&a.IsActive, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, &a)
	}
	return accounts, rows.Err()
}
