package recon

import (
	"fmt"

	"github.com/shopspring/decimal"

	"reconciliation-service/internal/domain"
)

// candidate is one admissible external counterpart for a ledger
// transaction, remembered with the deltas that qualified it.
type candidate struct {
	idx         int
	externalID  int64
	dayDelta    int
	amountDelta decimal.Decimal
}

// Match pairs ledger transactions with external transactions one to
// one. A pair is admissible when both sides belong to the same account,
// their absolute amounts differ by at most amountEpsilon, and their
// dates differ by at most toleranceDays whole days.
//
// Ledger transactions are processed in input order. When several
// externals are admissible the one with the smallest day delta wins,
// and among equal day deltas the earliest in input order; the
// alternatives are reported as an ambiguity. The same inputs always
// produce the same pairings.
func Match(ledger, external []*domain.Transaction, toleranceDays int, amountEpsilon decimal.Decimal) *domain.MatchSet {
	set := &domain.MatchSet{
		Matches:           []*domain.MatchResult{},
		UnmatchedLedger:   []*domain.Transaction{},
		UnmatchedExternal: []*domain.Transaction{},
	}

	used := make(map[int]bool, len(external))

	for _, l := range ledger {
		cands := admissible(l, external, used, toleranceDays, amountEpsilon)
		if len(cands) == 0 {
			set.UnmatchedLedger = append(set.UnmatchedLedger, l)
			continue
		}

		best := cands[0]
		for _, c := range cands[1:] {
			if c.dayDelta < best.dayDelta {
				best = c
			}
		}

		rationale := ""
		if len(cands) > 1 {
			ids := make([]int64, 0, len(cands))
			for _, c := range cands {
				ids = append(ids, c.externalID)
			}
			rationale = fmt.Sprintf("%d candidates within tolerance; chose txn %d with day delta %d",
				len(cands), best.externalID, best.dayDelta)
			set.Ambiguities = append(set.Ambiguities, &domain.MatchAmbiguity{
				LedgerTxnID:    l.ID,
				CandidateIDs:   ids,
				ChosenID:       best.externalID,
				ChosenDayDelta: best.dayDelta,
				Rationale:      rationale,
			})
		}

		used[best.idx] = true
		set.Matches = append(set.Matches, &domain.MatchResult{
			AccountCode:   l.AccountCode,
			LedgerTxnID:   l.ID,
			ExternalTxnID: best.externalID,
			AmountDelta:   best.amountDelta,
			DayDelta:      best.dayDelta,
			Rationale:     rationale,
		})
	}

	for i, e := range external {
		if !used[i] {
			set.UnmatchedExternal = append(set.UnmatchedExternal, e)
		}
	}

	return set
}

// admissible collects, in input order, the unused externals that can
// pair with l under the tolerance window.
func admissible(l *domain.Transaction, external []*domain.Transaction, used map[int]bool, toleranceDays int, amountEpsilon decimal.Decimal) []candidate {
	var cands []candidate
	for i, e := range external {
		if used[i] || e.AccountCode != l.AccountCode {
			continue
		}
		amtDelta := l.Amount.Abs().Sub(e.Amount.Abs()).Abs()
		if amtDelta.GreaterThan(amountEpsilon) {
			continue
		}
		dd := dayDelta(l, e)
		if dd > toleranceDays {
			continue
		}
		cands = append(cands, candidate{
			idx:         i,
			externalID:  e.ID,
			dayDelta:    dd,
			amountDelta: amtDelta,
		})
	}
	return cands
}

// dayDelta counts whole calendar days between two transactions,
// ignoring time of day.
func dayDelta(a, b *domain.Transaction) int {
	d := int(a.Day().Sub(b.Day()).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}
