package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CascadePolicy decides which recomputed balances must stay non-negative.
type CascadePolicy string

const (
	// CascadeStrict rejects a mutation if any recomputed balance is negative.
	CascadeStrict CascadePolicy = "strict"
	// CascadePermissive only checks the entry being written.
	CascadePermissive CascadePolicy = "permissive"
)

// ParseCascadePolicy parses a policy name; empty means strict.
func ParseCascadePolicy(s string) (CascadePolicy, error) {
	switch CascadePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", CascadeStrict:
		return CascadeStrict, nil
	case CascadePermissive:
		return CascadePermissive, nil
	default:
		return "", fmt.Errorf("unknown cascade policy %q", s)
	}
}

// CascadePlan is the outcome of recomputing a locked suffix of a ledger.
type CascadePlan struct {
	// Target is the created or updated entry carrying its new balance.
	// It is nil when an entry is removed.
	Target *Entry
	// Changed holds every other entry whose balance moved, by ascending id.
	Changed []*Entry
	// Ordered is the resulting suffix in canonical order.
	Ordered []*Entry
	// FinalBalance is the balance after the last entry of the suffix.
	FinalBalance decimal.Decimal
}

// PlanInsert places a new entry into a canonically ordered suffix whose first
// entry follows a balance of prev.
func PlanInsert(prev decimal.Decimal, suffix []*Entry, e *Entry, policy CascadePolicy) (*CascadePlan, error) {
	ordered := cloneEntries(suffix)
	SortCanonical(ordered)

	target := e.Clone()
	idx := insertionIndex(ordered, target)

	ordered = append(ordered, nil)
	copy(ordered[idx+1:], ordered[idx:])
	ordered[idx] = target

	return plan(prev, ordered, target, policy)
}

// PlanReplace swaps the suffix entry with updated.ID for updated and
// recomputes. The entry may move within the suffix if its date changed.
func PlanReplace(prev decimal.Decimal, suffix []*Entry, updated *Entry, policy CascadePolicy) (*CascadePlan, error) {
	ordered := cloneEntries(suffix)

	target := updated.Clone()
	found := false
	for i, e := range ordered {
		if e.ID == target.ID {
			target.Balance = e.Balance
			ordered[i] = target
			found = true
			break
		}
	}

	if !found {
		return nil, fmt.Errorf("%w: entry %d is not part of the locked range", ErrNotFound, updated.ID)
	}

	SortCanonical(ordered)

	return plan(prev, ordered, target, policy)
}

// PlanRemove drops the entry with entryID from the suffix and recomputes.
func PlanRemove(prev decimal.Decimal, suffix []*Entry, entryID int64, policy CascadePolicy) (*CascadePlan, error) {
	ordered := make([]*Entry, 0, len(suffix))
	found := false

	for _, e := range suffix {
		if e.ID == entryID {
			found = true
			continue
		}
		ordered = append(ordered, e.Clone())
	}

	if !found {
		return nil, fmt.Errorf("%w: entry %d is not part of the locked range", ErrNotFound, entryID)
	}

	SortCanonical(ordered)

	return plan(prev, ordered, nil, policy)
}

func plan(prev decimal.Decimal, ordered []*Entry, target *Entry, policy CascadePolicy) (*CascadePlan, error) {
	balances := Recompute(prev, ordered)

	p := &CascadePlan{
		Target:       target,
		Ordered:      ordered,
		FinalBalance: prev,
	}

	for i, e := range ordered {
		before := prev
		if i > 0 {
			before = balances[i-1]
		}

		old := e.Balance
		e.Balance = balances[i]

		if e.Balance.GreaterThan(maxQuantity) {
			return nil, fmt.Errorf("%w: balance on %s would exceed %s",
				ErrValidation, e.EntryDate.Format(DateLayout), MaxQuantity)
		}

		if e == target {
			if e.Balance.IsNegative() {
				return nil, fmt.Errorf("%w: balance would become %s (available %s)",
					ErrInsufficientBalance, e.Balance.StringFixed(QuantityScale), before.StringFixed(QuantityScale))
			}
			continue
		}

		if e.Balance.IsNegative() && policy != CascadePermissive {
			return nil, fmt.Errorf("%w: entry %d dated %s would drop to %s",
				ErrInsufficientBalance, e.ID, e.EntryDate.Format(DateLayout), e.Balance.StringFixed(QuantityScale))
		}

		if !old.Equal(e.Balance) {
			p.Changed = append(p.Changed, e)
		}
	}

	if len(balances) > 0 {
		p.FinalBalance = balances[len(balances)-1]
	}

	SortByID(p.Changed)

	return p, nil
}

func cloneEntries(entries []*Entry) []*Entry {
	out := make([]*Entry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}
