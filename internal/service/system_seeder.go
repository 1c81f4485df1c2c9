package service

import (
	"context"
	"fmt"
	"log"

	"reconciliation-service/internal/domain"
	"reconciliation-service/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SystemSeeder installs the default clearing-account universe on a
// fresh deployment. Seeding is idempotent: existing accounts keep
// their configured thresholds, only names are refreshed.
type SystemSeeder struct {
	accountRepo repository.AccountRepository
	db          *pgxpool.Pool
}

func NewSystemSeeder(
	accountRepo repository.AccountRepository,
	db *pgxpool.Pool,
) *SystemSeeder {
	return &SystemSeeder{
		accountRepo: accountRepo,
		db:          db,
	}
}

// SeedSystem upserts the default clearing accounts in one transaction.
func (s *SystemSeeder) SeedSystem(ctx context.Context) error {
	log.Println("🚀 Starting system seeding...")

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	seeded := 0
	for _, in := range domain.DefaultClearingAccounts {
		if _, err := s.accountRepo.Upsert(ctx, tx, in); err != nil {
			return fmt.Errorf("failed to seed account %s: %w", in.Code, err)
		}
		seeded++
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	log.Printf("✅ System seeding completed! (%d clearing accounts)", seeded)
	return nil
}
