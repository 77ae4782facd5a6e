package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func withBalances(entries []*Entry) []*Entry {
	balances := Recompute(decimal.Zero, entries)
	for i, e := range entries {
		e.Balance = balances[i]
	}
	return entries
}

func TestPlanInsertAppends(t *testing.T) {
	t.Parallel()

	suffix := withBalances([]*Entry{entry(1, 1, 100, 0)})

	p, err := PlanInsert(decimal.Zero, suffix, entry(0, 2, 0, 30), CascadeStrict)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Target.Balance.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("expected target balance 70, got %s", p.Target.Balance)
	}
	if len(p.Changed) != 0 {
		t.Fatalf("expected no cascaded entries, got %d", len(p.Changed))
	}
	if !p.FinalBalance.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("expected final balance 70, got %s", p.FinalBalance)
	}
}

func TestPlanInsertRejectsOverdraw(t *testing.T) {
	t.Parallel()

	suffix := withBalances([]*Entry{entry(1, 1, 100, 0), entry(2, 2, 0, 30)})

	_, err := PlanInsert(decimal.Zero, suffix, entry(0, 3, 0, 80), CascadeStrict)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	if !suffix[1].Balance.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("planner mutated its input: %s", suffix[1].Balance)
	}
}

func TestPlanInsertBackdated(t *testing.T) {
	t.Parallel()

	// Entries dated day 1 and 3; a new inflow on day 2 shifts the day 3 entry.
	suffix := withBalances([]*Entry{entry(1, 1, 100, 0), entry(2, 3, 0, 40)})

	p, err := PlanInsert(decimal.Zero, suffix, entry(0, 2, 10, 0), CascadeStrict)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Target.Balance.Equal(decimal.NewFromInt(110)) {
		t.Fatalf("expected target balance 110, got %s", p.Target.Balance)
	}
	if len(p.Changed) != 1 || p.Changed[0].ID != 2 || !p.Changed[0].Balance.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("expected entry 2 cascaded to 70, got %+v", p.Changed)
	}
}

func TestPlanInsertSameDayGoesLast(t *testing.T) {
	t.Parallel()

	suffix := withBalances([]*Entry{entry(1, 5, 100, 0), entry(2, 5, 0, 50)})

	p, err := PlanInsert(decimal.Zero, suffix, entry(0, 5, 0, 20), CascadeStrict)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Ordered[len(p.Ordered)-1] != p.Target {
		t.Fatalf("expected same-day entry to be placed last")
	}
	if !p.Target.Balance.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected target balance 30, got %s", p.Target.Balance)
	}
}

func TestPlanReplaceCascades(t *testing.T) {
	t.Parallel()

	suffix := withBalances([]*Entry{entry(1, 1, 100, 0), entry(2, 2, 0, 30)})

	updated := entry(1, 1, 60, 0)
	p, err := PlanReplace(decimal.Zero, suffix, updated, CascadeStrict)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Target.Balance.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected target balance 60, got %s", p.Target.Balance)
	}
	if len(p.Changed) != 1 || !p.Changed[0].Balance.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected later entry cascaded to 30, got %+v", p.Changed)
	}
	if !p.FinalBalance.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected final balance 30, got %s", p.FinalBalance)
	}
}

func TestPlanReplaceMovesDate(t *testing.T) {
	t.Parallel()

	suffix := withBalances([]*Entry{entry(1, 1, 100, 0), entry(2, 2, 0, 30), entry(3, 3, 50, 0)})

	// Move the outflow after the day 3 inflow.
	p, err := PlanReplace(decimal.Zero, suffix, entry(2, 4, 0, 30), CascadeStrict)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertIDs(t, p.Ordered, 1, 3, 2)

	if !p.Target.Balance.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("expected moved entry balance 120, got %s", p.Target.Balance)
	}
	if len(p.Changed) != 1 || p.Changed[0].ID != 3 || !p.Changed[0].Balance.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected entry 3 cascaded to 150, got %+v", p.Changed)
	}
}

func TestPlanReplaceSuffixPolicy(t *testing.T) {
	t.Parallel()

	suffix := withBalances([]*Entry{entry(1, 1, 100, 0), entry(2, 2, 0, 90)})
	updated := entry(1, 1, 50, 0)

	_, err := PlanReplace(decimal.Zero, suffix, updated, CascadeStrict)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("strict: expected ErrInsufficientBalance, got %v", err)
	}

	p, err := PlanReplace(decimal.Zero, suffix, updated, CascadePermissive)
	if err != nil {
		t.Fatalf("permissive: unexpected error: %v", err)
	}
	if !p.FinalBalance.Equal(decimal.NewFromInt(-40)) {
		t.Fatalf("permissive: expected final balance -40, got %s", p.FinalBalance)
	}
}

func TestPlanReplaceTargetAlwaysChecked(t *testing.T) {
	t.Parallel()

	suffix := withBalances([]*Entry{entry(1, 1, 100, 0), entry(2, 2, 0, 30)})

	_, err := PlanReplace(decimal.Zero, suffix, entry(2, 2, 0, 130), CascadePermissive)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestPlanRejectsBalanceAboveColumnRange(t *testing.T) {
	t.Parallel()

	limit := decimal.RequireFromString(MaxQuantity)

	full := &Entry{ID: 1, RecordID: 1, EntryDate: day(1), QuantityIn: limit}
	_, err := PlanInsert(decimal.Zero, nil, full, CascadeStrict)
	if err != nil {
		t.Fatalf("unexpected error at the limit: %v", err)
	}

	_, err = PlanInsert(limit, nil, &Entry{RecordID: 1, EntryDate: day(2), QuantityIn: limit}, CascadeStrict)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	// A backdated inflow that only overflows a later entry is rejected under
	// either policy.
	later := withBalances([]*Entry{{ID: 1, RecordID: 1, EntryDate: day(3), QuantityIn: limit}})
	for _, policy := range []CascadePolicy{CascadeStrict, CascadePermissive} {
		_, err = PlanInsert(decimal.Zero, later, entry(0, 2, 1, 0), policy)
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected ErrValidation, got %v", policy, err)
		}
	}
}

func TestPlanReplaceUnknownEntry(t *testing.T) {
	t.Parallel()

	suffix := withBalances([]*Entry{entry(1, 1, 100, 0)})

	if _, err := PlanReplace(decimal.Zero, suffix, entry(9, 1, 5, 0), CascadeStrict); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPlanRemove(t *testing.T) {
	t.Parallel()

	suffix := withBalances([]*Entry{entry(1, 1, 60, 0), entry(2, 2, 0, 30), entry(3, 3, 10, 0)})

	p, err := PlanRemove(decimal.Zero, suffix, 2, CascadeStrict)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Target != nil {
		t.Fatalf("expected no target when removing")
	}
	assertIDs(t, p.Ordered, 1, 3)
	if len(p.Changed) != 1 || !p.Changed[0].Balance.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("expected entry 3 cascaded to 70, got %+v", p.Changed)
	}
	if !p.FinalBalance.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("expected final balance 70, got %s", p.FinalBalance)
	}
}

func TestPlanRemoveInflowStrict(t *testing.T) {
	t.Parallel()

	suffix := withBalances([]*Entry{entry(1, 1, 100, 0), entry(2, 2, 0, 60)})

	if _, err := PlanRemove(decimal.Zero, suffix, 1, CascadeStrict); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestPlanRemoveLastLeavesPrev(t *testing.T) {
	t.Parallel()

	last := entry(7, 4, 0, 10)
	last.Balance = decimal.NewFromInt(50)

	p, err := PlanRemove(decimal.NewFromInt(60), []*Entry{last}, 7, CascadeStrict)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Ordered) != 0 || !p.FinalBalance.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected empty suffix with final balance 60, got %d entries, %s", len(p.Ordered), p.FinalBalance)
	}
}

func TestParseCascadePolicy(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]CascadePolicy{"": CascadeStrict, "STRICT": CascadeStrict, " permissive ": CascadePermissive} {
		got, err := ParseCascadePolicy(in)
		if err != nil || got != want {
			t.Fatalf("ParseCascadePolicy(%q) = %q, %v; want %q", in, got, err, want)
		}
	}

	if _, err := ParseCascadePolicy("lenient"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}
