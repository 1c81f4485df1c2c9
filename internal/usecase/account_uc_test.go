package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"reconciliation-service/internal/domain"
	"reconciliation-service/pkg/xerrors"
)

func newAccountUC(accounts ...*domain.Account) *AccountUsecase {
	repo := &mockAccountRepo{accounts: map[string]*domain.Account{}}
	for _, a := range accounts {
		repo.accounts[a.Code] = a
	}
	return NewAccountUsecase(repo, nil)
}

func TestAccountCreate(t *testing.T) {
	uc := newAccountUC()

	created, err := uc.Create(context.Background(), &domain.AccountCreate{
		Code:              "  74505 ",
		Name:              " ATM settlement ",
		VarianceThreshold: decPtr("500.00"),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Code != "74505" || created.Name != "ATM settlement" {
		t.Errorf("created = %q / %q, want trimmed code and name", created.Code, created.Name)
	}
	if !created.IsActive {
		t.Error("new account should be active")
	}
	if created.VarianceThreshold == nil || !created.VarianceThreshold.Equal(dec("500.00")) {
		t.Errorf("threshold = %v, want 500.00", created.VarianceThreshold)
	}

	if _, err := uc.Create(context.Background(), &domain.AccountCreate{Code: "74505", Name: "dup"}); !errors.Is(err, xerrors.ErrDuplicateAccount) {
		t.Errorf("duplicate create err = %v, want ErrDuplicateAccount", err)
	}
}

func TestAccountCreateRejectsBadInput(t *testing.T) {
	uc := newAccountUC()

	tests := []struct {
		name string
		in   *domain.AccountCreate
	}{
		{"empty code", &domain.AccountCreate{Code: "  ", Name: "ATM settlement"}},
		{"empty name", &domain.AccountCreate{Code: "74505", Name: ""}},
		{"negative threshold", &domain.AccountCreate{Code: "74505", Name: "ATM settlement", VarianceThreshold: decPtr("-1.00")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := uc.Create(context.Background(), tc.in); !errors.Is(err, xerrors.ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestAccountGetByCode(t *testing.T) {
	uc := newAccountUC(account("74400", "Corporate settlement", decPtr("250.00")))

	got, err := uc.GetByCode(context.Background(), "74400")
	if err != nil {
		t.Fatalf("GetByCode: %v", err)
	}
	if got.Name != "Corporate settlement" {
		t.Errorf("Name = %q", got.Name)
	}

	if _, err := uc.GetByCode(context.Background(), "99999"); !errors.Is(err, xerrors.ErrAccountNotFound) {
		t.Errorf("unknown code err = %v, want ErrAccountNotFound", err)
	}
	if _, err := uc.GetByCode(context.Background(), "   "); !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Errorf("blank code err = %v, want ErrInvalidInput", err)
	}
}

func TestAccountUpdateThresholds(t *testing.T) {
	uc := newAccountUC(account("74505", "ATM settlement", decPtr("500.00")))

	cats := map[string]decimal.Decimal{"ATM_SETTLEMENT": dec("200.00")}
	updated, err := uc.UpdateThresholds(context.Background(), "74505", decPtr("750.00"), cats)
	if err != nil {
		t.Fatalf("UpdateThresholds: %v", err)
	}
	if updated.VarianceThreshold == nil || !updated.VarianceThreshold.Equal(dec("750.00")) {
		t.Errorf("threshold = %v, want 750.00", updated.VarianceThreshold)
	}
	if got := updated.CategoryThresholds["ATM_SETTLEMENT"]; !got.Equal(dec("200.00")) {
		t.Errorf("category threshold = %s, want 200.00", got)
	}

	// nil clears the configuration so the default applies next run
	cleared, err := uc.UpdateThresholds(context.Background(), "74505", nil, nil)
	if err != nil {
		t.Fatalf("UpdateThresholds clear: %v", err)
	}
	if cleared.VarianceThreshold != nil {
		t.Errorf("threshold = %v, want nil after clearing", cleared.VarianceThreshold)
	}

	if _, err := uc.UpdateThresholds(context.Background(), "74505", decPtr("-5.00"), nil); !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Errorf("negative threshold err = %v, want ErrInvalidInput", err)
	}
	bad := map[string]decimal.Decimal{"FEE": dec("-1.00")}
	if _, err := uc.UpdateThresholds(context.Background(), "74505", nil, bad); !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Errorf("negative category err = %v, want ErrInvalidInput", err)
	}
	if _, err := uc.UpdateThresholds(context.Background(), "99999", decPtr("10.00"), nil); !errors.Is(err, xerrors.ErrAccountNotFound) {
		t.Errorf("unknown account err = %v, want ErrAccountNotFound", err)
	}
}

func TestAccountList(t *testing.T) {
	uc := newAccountUC(
		account("74400", "Corporate settlement", nil),
		account("74505", "ATM settlement", decPtr("500.00")),
	)

	accounts, err := uc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("len = %d, want 2", len(accounts))
	}
}
