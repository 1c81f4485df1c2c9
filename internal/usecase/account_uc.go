package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"reconciliation-service/internal/domain"
	"reconciliation-service/internal/repository"
	"reconciliation-service/pkg/xerrors"
)

const (
	accountCacheTTL     = 30 * time.Minute
	accountListCacheTTL = 5 * time.Minute
	accountListCacheKey = "accounts:list:active"
)

type AccountUsecase struct {
	accountRepo repository.AccountRepository
	redisClient *redis.Client
}

// NewAccountUsecase initializes a new AccountUsecase. The redis client
// may be nil; caching then simply never happens.
func NewAccountUsecase(accountRepo repository.AccountRepository, redisClient *redis.Client) *AccountUsecase {
	return &AccountUsecase{
		accountRepo: accountRepo,
		redisClient: redisClient,
	}
}

func accountCacheKey(code string) string {
	return fmt.Sprintf("accounts:code:%s", code)
}

func (uc *AccountUsecase) GetByCode(ctx context.Context, code string) (*domain.Account, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, xerrors.ErrInvalidInput
	}
	cacheKey := accountCacheKey(code)

	// --- Check Redis cache first ---
	if uc.redisClient != nil {
		if val, err := uc.redisClient.Get(ctx, cacheKey).Result(); err == nil {
			var account domain.Account
			if jsonErr := json.Unmarshal([]byte(val), &account); jsonErr == nil {
				return &account, nil
			}
		}
	}

	account, err := uc.accountRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	// --- Cache result in Redis ---
	if uc.redisClient != nil {
		if data, err := json.Marshal(account); err == nil {
			_ = uc.redisClient.Set(ctx, cacheKey, data, accountCacheTTL).Err()
		}
	}

	return account, nil
}

func (uc *AccountUsecase) Create(ctx context.Context, in *domain.AccountCreate) (*domain.Account, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if in.Code == "" || in.Name == "" {
		return nil, xerrors.ErrInvalidInput
	}
	if in.VarianceThreshold != nil && in.VarianceThreshold.IsNegative() {
		return nil, xerrors.ErrInvalidInput
	}

	account, err := uc.accountRepo.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	uc.invalidate(ctx, account.Code)
	return account, nil
}

// UpdateThresholds replaces the account's variance threshold and
// category limits. A nil threshold clears the configuration, so the
// documented default applies on the next run.
func (uc *AccountUsecase) UpdateThresholds(ctx context.Context, code string, threshold *decimal.Decimal, categories map[string]decimal.Decimal) (*domain.Account, error) {
	if threshold != nil && threshold.IsNegative() {
		return nil, xerrors.ErrInvalidInput
	}
	for _, v := range categories {
		if v.IsNegative() {
			return nil, xerrors.ErrInvalidInput
		}
	}

	account, err := uc.accountRepo.UpdateThresholds(ctx, strings.TrimSpace(code), threshold, categories)
	if err != nil {
		return nil, err
	}
	uc.invalidate(ctx, account.Code)
	return account, nil
}

func (uc *AccountUsecase) List(ctx context.Context) ([]*domain.Account, error) {
	// --- Check Redis cache first ---
	if uc.redisClient != nil {
		if val, err := uc.redisClient.Get(ctx, accountListCacheKey).Result(); err == nil {
			var accounts []*domain.Account
			if jsonErr := json.Unmarshal([]byte(val), &accounts); jsonErr == nil {
				return accounts, nil
			}
		}
	}

	active := true
	accounts, err := uc.accountRepo.GetByFilter(ctx, &domain.AccountFilter{IsActive: &active})
	if err != nil {
		return nil, err
	}

	// --- Cache result in Redis ---
	if uc.redisClient != nil {
		if data, err := json.Marshal(accounts); err == nil {
			_ = uc.redisClient.Set(ctx, accountListCacheKey, data, accountListCacheTTL).Err()
		}
	}

	return accounts, nil
}

func (uc *AccountUsecase) invalidate(ctx context.Context, code string) {
	if uc.redisClient == nil {
		return
	}
	_ = uc.redisClient.Del(ctx, accountCacheKey(code)).Err()

	// drop every cached listing shape, not just the active one
	iter := uc.redisClient.Scan(ctx, 0, "accounts:list:*", 0).Iterator()
	for iter.Next(ctx) {
		_ = uc.redisClient.Del(ctx, iter.Val()).Err()
	}
}
