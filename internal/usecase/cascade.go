package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/stockledger/internal/domain"
)

// Cascader locks the affected part of a record's ledger, plans the
// recomputation and writes it back. All methods run inside the caller's
// transaction.
//
// Lock order is always the record row first, then the entries dated on or
// after the boundary date in ascending id order.
type Cascader struct {
	recordRepo RecordRepository
	entryRepo  EntryRepository
	policy     domain.CascadePolicy
}

// NewCascader creates a new Cascader.
func NewCascader(recordRepo RecordRepository, entryRepo EntryRepository, policy domain.CascadePolicy) *Cascader {
	if policy == "" {
		policy = domain.CascadeStrict
	}

	return &Cascader{
		recordRepo: recordRepo,
		entryRepo:  entryRepo,
		policy:     policy,
	}
}

// Policy returns the configured cascade policy.
func (c *Cascader) Policy() domain.CascadePolicy {
	return c.policy
}

type lockedRange struct {
	record *domain.Record
	prev   decimal.Decimal
	suffix []*domain.Entry
}

// lockRecord locks the record row. It is the first lock every mutation takes.
func (c *Cascader) lockRecord(ctx context.Context, tx Transaction, ownerID, recordID int64) (*domain.Record, error) {
	return c.recordRepo.GetByIDForUpdate(ctx, tx, ownerID, recordID)
}

// lockSuffix locks the entries dated on or after boundary and reads the
// balance that precedes them.
func (c *Cascader) lockSuffix(ctx context.Context, tx Transaction, recordID int64, boundary time.Time) (decimal.Decimal, []*domain.Entry, error) {
	suffix, err := c.entryRepo.LockFrom(ctx, tx, recordID, boundary)
	if err != nil {
		return decimal.Zero, nil, err
	}

	prev, err := c.entryRepo.BalanceBefore(ctx, tx, recordID, boundary)
	if err != nil {
		return decimal.Zero, nil, err
	}

	return prev, suffix, nil
}

// Insert adds a new entry at its canonical position and cascades every later
// entry. entry.ID is set on success.
func (c *Cascader) Insert(ctx context.Context, tx Transaction, m *mutation, ownerID int64, entry *domain.Entry) (*domain.CascadePlan, error) {
	record, err := c.lockRecord(ctx, tx, ownerID, entry.RecordID)
	if err != nil {
		return nil, err
	}

	prev, suffix, err := c.lockSuffix(ctx, tx, record.ID, entry.EntryDate)
	if err != nil {
		return nil, err
	}

	m.advance(domain.StateComputing)

	plan, err := domain.PlanInsert(prev, suffix, entry, c.policy)
	if err != nil {
		return nil, err
	}

	m.advance(domain.StatePersisting)

	if err := c.entryRepo.Create(ctx, tx, plan.Target); err != nil {
		return nil, err
	}

	if err := c.rewrite(ctx, tx, plan.Changed, entry.CreatedAt); err != nil {
		return nil, err
	}

	entry.ID = plan.Target.ID
	entry.Balance = plan.Target.Balance

	return plan, nil
}

// Replace applies new field values to an existing entry, moving it in the
// canonical order if its date changed, and cascades.
func (c *Cascader) Replace(ctx context.Context, tx Transaction, m *mutation, ownerID, recordID int64, updated *domain.Entry) (*domain.CascadePlan, error) {
	record, err := c.lockRecord(ctx, tx, ownerID, recordID)
	if err != nil {
		return nil, err
	}

	// Re-read under the record lock; the entry cannot move after this point.
	current, err := c.entryRepo.GetByIDTx(ctx, tx, ownerID, updated.ID)
	if err != nil {
		return nil, err
	}

	if current.RecordID != record.ID {
		return nil, fmt.Errorf("%w: entry %d", domain.ErrNotFound, updated.ID)
	}

	boundary := current.EntryDate
	if updated.EntryDate.Before(boundary) {
		boundary = updated.EntryDate
	}

	prev, suffix, err := c.lockSuffix(ctx, tx, record.ID, boundary)
	if err != nil {
		return nil, err
	}

	m.advance(domain.StateComputing)

	updated.RecordID = current.RecordID
	updated.CreatedAt = current.CreatedAt

	plan, err := domain.PlanReplace(prev, suffix, updated, c.policy)
	if err != nil {
		return nil, err
	}

	m.advance(domain.StatePersisting)

	if err := c.entryRepo.Update(ctx, tx, plan.Target); err != nil {
		return nil, err
	}

	if err := c.rewrite(ctx, tx, plan.Changed, updated.UpdatedAt); err != nil {
		return nil, err
	}

	updated.Balance = plan.Target.Balance

	return plan, nil
}

// Remove deletes an entry and cascades the entries that followed it. The
// sole entry of a record cannot be removed.
func (c *Cascader) Remove(ctx context.Context, tx Transaction, m *mutation, ownerID, recordID, entryID int64, now time.Time) (*domain.CascadePlan, error) {
	record, err := c.lockRecord(ctx, tx, ownerID, recordID)
	if err != nil {
		return nil, err
	}

	current, err := c.entryRepo.GetByIDTx(ctx, tx, ownerID, entryID)
	if err != nil {
		return nil, err
	}

	if current.RecordID != record.ID {
		return nil, fmt.Errorf("%w: entry %d", domain.ErrNotFound, entryID)
	}

	count, err := c.entryRepo.CountByRecordTx(ctx, tx, record.ID)
	if err != nil {
		return nil, err
	}

	if count <= 1 {
		return nil, domain.ErrLastEntryUndeletable
	}

	prev, suffix, err := c.lockSuffix(ctx, tx, record.ID, current.EntryDate)
	if err != nil {
		return nil, err
	}

	m.advance(domain.StateComputing)

	plan, err := domain.PlanRemove(prev, suffix, entryID, c.policy)
	if err != nil {
		return nil, err
	}

	m.advance(domain.StatePersisting)

	if err := c.entryRepo.Delete(ctx, tx, entryID); err != nil {
		return nil, err
	}

	if err := c.rewrite(ctx, tx, plan.Changed, now); err != nil {
		return nil, err
	}

	return plan, nil
}

// Rebuild locks the whole ledger of a record and rewrites every stored
// balance that differs from a recomputation from zero. It never rejects
// negative balances, it only makes the cache match the ledger.
func (c *Cascader) Rebuild(ctx context.Context, tx Transaction, m *mutation, ownerID, recordID int64, now time.Time) ([]domain.BalanceMismatch, error) {
	record, err := c.lockRecord(ctx, tx, ownerID, recordID)
	if err != nil {
		return nil, err
	}

	entries, err := c.entryRepo.LockFrom(ctx, tx, record.ID, time.Time{})
	if err != nil {
		return nil, err
	}

	m.advance(domain.StateComputing)

	domain.SortCanonical(entries)
	mismatches := domain.Verify(entries)

	m.advance(domain.StatePersisting)

	changed := make([]*domain.Entry, 0, len(mismatches))
	for _, mm := range mismatches {
		changed = append(changed, &domain.Entry{ID: mm.EntryID, Balance: mm.Expected})
	}
	domain.SortByID(changed)

	if err := c.rewrite(ctx, tx, changed, now); err != nil {
		return nil, err
	}

	return mismatches, nil
}

// rewrite persists recomputed balances in ascending id order.
func (c *Cascader) rewrite(ctx context.Context, tx Transaction, changed []*domain.Entry, now time.Time) error {
	for _, e := range changed {
		if err := c.entryRepo.UpdateBalance(ctx, tx, e.ID, e.Balance, now); err != nil {
			return err
		}
	}
	return nil
}
