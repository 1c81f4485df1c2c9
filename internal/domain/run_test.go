package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestRunStatusCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from RunStatus
		to   RunStatus
		want bool
	}{
		{"ingested to matched", RunIngested, RunMatched, true},
		{"ingested to aborted", RunIngested, RunAborted, true},
		{"ingested skips classify", RunIngested, RunClassified, false},
		{"matched to classified", RunMatched, RunClassified, true},
		{"classified to verified", RunClassified, RunVerified, true},
		{"verified to balanced", RunVerified, RunBalanced, true},
		{"verified to imbalanced", RunVerified, RunImbalanced, true},
		{"balanced to audited", RunBalanced, RunAudited, true},
		{"imbalanced to audited", RunImbalanced, RunAudited, true},
		{"no backward step", RunMatched, RunIngested, false},
		{"audited is final", RunAudited, RunAborted, false},
		{"aborted is final", RunAborted, RunMatched, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestRunStatusTerminal(t *testing.T) {
	for _, s := range []RunStatus{RunIngested, RunMatched, RunClassified, RunVerified, RunBalanced, RunImbalanced} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	for _, s := range []RunStatus{RunAudited, RunAborted} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestSignedAmount(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		sign   TransactionSign
		want   string
	}{
		{"no sign keeps positive", "125.50", SignNone, "125.5"},
		{"no sign keeps negative", "-125.50", SignNone, "-125.5"},
		{"debit forces positive", "-300.00", SignDebit, "300"},
		{"credit forces negative", "300.00", SignCredit, "-300"},
		{"lowercase sign accepted", "42.10", "cr", "-42.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &TransactionInput{
				Amount: decimal.RequireFromString(tt.amount),
				Sign:   tt.sign,
			}
			if got := in.SignedAmount(); got.String() != tt.want {
				t.Errorf("SignedAmount() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMatchRate(t *testing.T) {
	ms := &MatchSet{
		Matches:         []*MatchResult{{}, {}, {}},
		UnmatchedLedger: []*Transaction{{}},
	}
	if got := ms.MatchRate(); got.String() != "75" {
		t.Errorf("MatchRate() = %s, want 75", got)
	}

	empty := &MatchSet{}
	if got := empty.MatchRate(); got.String() != "100" {
		t.Errorf("empty MatchRate() = %s, want 100", got)
	}
}

func TestAuditOperationMutating(t *testing.T) {
	mutating := []AuditOperation{OpMatchAccepted, OpVarianceClassified, OpBalanceComputed}
	for _, op := range mutating {
		if !op.Mutating() {
			t.Errorf("%s should be mutating", op)
		}
	}
	informational := []AuditOperation{OpRunStarted, OpMatchAmbiguity, OpThresholdDefaulted, OpStatusComputed, OpRunFinalized}
	for _, op := range informational {
		if op.Mutating() {
			t.Errorf("%s should not be mutating", op)
		}
	}
}

func TestTransactionDay(t *testing.T) {
	txn := &Transaction{Date: time.Date(2025, 1, 15, 23, 45, 10, 0, time.FixedZone("EAT", 3*3600))}
	day := txn.Day()
	if day.Hour() != 0 || day.Location() != time.UTC {
		t.Errorf("Day() = %v, want midnight UTC", day)
	}
	if day.Day() != 15 {
		t.Errorf("Day() date = %d, want 15", day.Day())
	}
}

func TestVarianceCategoryIsTiming(t *testing.T) {
	if !CategoryATMSettlement.IsTiming() {
		t.Error("ATM_SETTLEMENT should be a timing category")
	}
	if CategoryACH.IsTiming() {
		t.Error("ACH should not be a timing category")
	}
	if CategoryUnexplained.IsTiming() {
		t.Error("UNEXPLAINED should not be a timing category")
	}
}
