package recon

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"reconciliation-service/internal/domain"
)

func txn(id int64, account, date, amount string, source domain.TransactionSource) *domain.Transaction {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return &domain.Transaction{
		ID:          id,
		AccountCode: account,
		Date:        d,
		Amount:      decimal.RequireFromString(amount),
		Source:      source,
	}
}

var eps = decimal.RequireFromString("0.01")

func TestMatchPairsWithinTolerance(t *testing.T) {
	ledger := []*domain.Transaction{txn(1, "74505", "2025-01-10", "100.00", domain.SourceLedger)}
	external := []*domain.Transaction{txn(2, "74505", "2025-01-12", "-100.00", domain.SourceExternal)}

	set := Match(ledger, external, 3, eps)

	if len(set.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(set.Matches))
	}
	m := set.Matches[0]
	if m.LedgerTxnID != 1 || m.ExternalTxnID != 2 {
		t.Errorf("matched %d-%d, want 1-2", m.LedgerTxnID, m.ExternalTxnID)
	}
	if m.DayDelta != 2 {
		t.Errorf("day delta = %d, want 2", m.DayDelta)
	}
	if len(set.UnmatchedLedger) != 0 || len(set.UnmatchedExternal) != 0 {
		t.Errorf("expected empty unmatched sets, got %d ledger / %d external",
			len(set.UnmatchedLedger), len(set.UnmatchedExternal))
	}
}

func TestMatchPrefersSmallestDayDelta(t *testing.T) {
	ledger := []*domain.Transaction{txn(1, "74505", "2025-01-10", "250.00", domain.SourceLedger)}
	external := []*domain.Transaction{
		txn(2, "74505", "2025-01-12", "-250.00", domain.SourceExternal), // 2 days away
		txn(3, "74505", "2025-01-11", "-250.00", domain.SourceExternal), // 1 day away
	}

	set := Match(ledger, external, 3, eps)

	if len(set.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(set.Matches))
	}
	if got := set.Matches[0].ExternalTxnID; got != 3 {
		t.Errorf("chose external %d, want 3 (smaller day delta)", got)
	}
	if len(set.UnmatchedExternal) != 1 || set.UnmatchedExternal[0].ID != 2 {
		t.Errorf("expected external 2 left unmatched")
	}
	if len(set.Ambiguities) != 1 {
		t.Fatalf("expected 1 ambiguity, got %d", len(set.Ambiguities))
	}
	amb := set.Ambiguities[0]
	if amb.ChosenID != 3 || amb.LedgerTxnID != 1 {
		t.Errorf("ambiguity recorded %+v", amb)
	}
	if set.Matches[0].Rationale == "" {
		t.Error("tie-broken match should carry a rationale")
	}
}

func TestMatchTieBreaksByInputOrder(t *testing.T) {
	ledger := []*domain.Transaction{txn(1, "74510", "2025-01-10", "75.25", domain.SourceLedger)}
	external := []*domain.Transaction{
		txn(2, "74510", "2025-01-11", "-75.25", domain.SourceExternal),
		txn(3, "74510", "2025-01-09", "-75.25", domain.SourceExternal), // same 1-day delta
	}

	set := Match(ledger, external, 3, eps)

	if got := set.Matches[0].ExternalTxnID; got != 2 {
		t.Errorf("chose external %d, want 2 (earliest in input order)", got)
	}
}

func TestMatchRespectsAmountEpsilon(t *testing.T) {
	tests := []struct {
		name      string
		extAmount string
		matched   bool
	}{
		{"exact", "-100.00", true},
		{"inside epsilon", "-100.01", true},
		{"outside epsilon", "-100.02", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := []*domain.Transaction{txn(1, "74400", "2025-01-10", "100.00", domain.SourceLedger)}
			external := []*domain.Transaction{txn(2, "74400", "2025-01-10", tt.extAmount, domain.SourceExternal)}
			set := Match(ledger, external, 3, eps)
			if got := len(set.Matches) == 1; got != tt.matched {
				t.Errorf("matched = %v, want %v", got, tt.matched)
			}
		})
	}
}

func TestMatchRespectsDateTolerance(t *testing.T) {
	tests := []struct {
		name    string
		extDate string
		matched bool
	}{
		{"same day", "2025-01-10", true},
		{"at tolerance", "2025-01-13", true},
		{"past tolerance", "2025-01-14", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := []*domain.Transaction{txn(1, "74400", "2025-01-10", "50.00", domain.SourceLedger)}
			external := []*domain.Transaction{txn(2, "74400", tt.extDate, "-50.00", domain.SourceExternal)}
			set := Match(ledger, external, 3, eps)
			if got := len(set.Matches) == 1; got != tt.matched {
				t.Errorf("matched = %v, want %v", got, tt.matched)
			}
		})
	}
}

func TestMatchNeverCrossesAccounts(t *testing.T) {
	ledger := []*domain.Transaction{txn(1, "74505", "2025-01-10", "500.00", domain.SourceLedger)}
	external := []*domain.Transaction{txn(2, "74510", "2025-01-10", "-500.00", domain.SourceExternal)}

	set := Match(ledger, external, 3, eps)

	if len(set.Matches) != 0 {
		t.Fatalf("expected no cross-account match, got %d", len(set.Matches))
	}
	if len(set.UnmatchedLedger) != 1 || len(set.UnmatchedExternal) != 1 {
		t.Errorf("both transactions should stay unmatched")
	}
}

func TestMatchConservesTransactions(t *testing.T) {
	ledger := []*domain.Transaction{
		txn(1, "74505", "2025-01-10", "100.00", domain.SourceLedger),
		txn(2, "74505", "2025-01-11", "200.00", domain.SourceLedger),
		txn(3, "74510", "2025-01-12", "300.00", domain.SourceLedger),
	}
	external := []*domain.Transaction{
		txn(4, "74505", "2025-01-10", "-100.00", domain.SourceExternal),
		txn(5, "74510", "2025-01-20", "-300.00", domain.SourceExternal),
		txn(6, "74510", "2025-01-12", "-999.00", domain.SourceExternal),
	}

	set := Match(ledger, external, 3, eps)

	if got := len(set.Matches) + len(set.UnmatchedLedger); got != len(ledger) {
		t.Errorf("ledger side: matched + unmatched = %d, want %d", got, len(ledger))
	}
	if got := len(set.Matches) + len(set.UnmatchedExternal); got != len(external) {
		t.Errorf("external side: matched + unmatched = %d, want %d", got, len(external))
	}

	seen := map[int64]int{}
	for _, m := range set.Matches {
		seen[m.LedgerTxnID]++
		seen[m.ExternalTxnID]++
	}
	for _, u := range set.UnmatchedLedger {
		seen[u.ID]++
	}
	for _, u := range set.UnmatchedExternal {
		seen[u.ID]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("transaction %d appears %d times across output buckets", id, n)
		}
	}
	if len(seen) != len(ledger)+len(external) {
		t.Errorf("output covers %d transactions, want %d", len(seen), len(ledger)+len(external))
	}
}

func TestMatchIsDeterministic(t *testing.T) {
	build := func() ([]*domain.Transaction, []*domain.Transaction) {
		ledger := []*domain.Transaction{
			txn(1, "74505", "2025-01-10", "100.00", domain.SourceLedger),
			txn(2, "74505", "2025-01-10", "100.00", domain.SourceLedger),
			txn(3, "74510", "2025-01-15", "42.50", domain.SourceLedger),
		}
		external := []*domain.Transaction{
			txn(4, "74505", "2025-01-11", "-100.00", domain.SourceExternal),
			txn(5, "74505", "2025-01-09", "-100.00", domain.SourceExternal),
			txn(6, "74510", "2025-01-15", "-42.50", domain.SourceExternal),
		}
		return ledger, external
	}

	l1, e1 := build()
	l2, e2 := build()
	first := Match(l1, e1, 3, eps)
	second := Match(l2, e2, 3, eps)

	if !reflect.DeepEqual(first.Matches, second.Matches) {
		t.Error("identical inputs produced different match sets")
	}
	if !reflect.DeepEqual(first.Ambiguities, second.Ambiguities) {
		t.Error("identical inputs produced different ambiguities")
	}
}

func TestMatchEmptyInputs(t *testing.T) {
	set := Match(nil, nil, 3, eps)
	if len(set.Matches) != 0 || len(set.UnmatchedLedger) != 0 || len(set.UnmatchedExternal) != 0 {
		t.Errorf("empty inputs should produce an empty set, got %+v", set)
	}
}
