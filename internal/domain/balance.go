package domain

import "github.com/shopspring/decimal"

// Recompute returns the running balance after each entry, starting from start.
// Entries must already be in canonical order. Negative results are returned
// as-is; callers decide whether they are acceptable.
func Recompute(start decimal.Decimal, ordered []*Entry) []decimal.Decimal {
	balances := make([]decimal.Decimal, len(ordered))

	prev := start
	for i, e := range ordered {
		prev = prev.Add(e.QuantityIn).Sub(e.QuantityOut)
		balances[i] = prev
	}

	return balances
}

// BalanceMismatch describes a stored balance that disagrees with a recompute.
type BalanceMismatch struct {
	EntryID  int64
	Stored   decimal.Decimal
	Expected decimal.Decimal
}

// Verify recomputes the whole ledger from zero and reports every entry whose
// stored balance differs. Entries must be in canonical order.
func Verify(ordered []*Entry) []BalanceMismatch {
	var mismatches []BalanceMismatch

	for i, b := range Recompute(decimal.Zero, ordered) {
		if !ordered[i].Balance.Equal(b) {
			mismatches = append(mismatches, BalanceMismatch{
				EntryID:  ordered[i].ID,
				Stored:   ordered[i].Balance,
				Expected: b,
			})
		}
	}

	return mismatches
}
