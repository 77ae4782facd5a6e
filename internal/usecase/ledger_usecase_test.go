package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
	"github.com/iho/stockledger/internal/usecase/mocks"
)

const owner = int64(7)

type ledgerFixture struct {
	store     *mocks.MemoryStore
	records   *mocks.MockRecordRepository
	entries   *mocks.MockEntryRepository
	txManager *mocks.MockTransactionManager
	cache     *mocks.MockCache
	metrics   *mocks.MockMetrics
	ledger    *usecase.LedgerUseCase
	record    *domain.Record
}

func newLedgerFixture(t *testing.T, policy domain.CascadePolicy) *ledgerFixture {
	t.Helper()

	store := mocks.NewMemoryStore()
	f := &ledgerFixture{
		store:     store,
		records:   mocks.NewMockRecordRepository(store),
		entries:   mocks.NewMockEntryRepository(store),
		txManager: mocks.NewMockTransactionManager(store),
		cache:     mocks.NewMockCache(),
		metrics:   mocks.NewMockMetrics(),
	}

	f.ledger = usecase.NewLedgerUseCase(f.txManager, f.records, f.entries, policy,
		usecase.WithCache(f.cache),
		usecase.WithMetrics(f.metrics),
		usecase.WithTransactionTimeout(time.Second),
	)
	f.record = store.SeedRecord(owner, "COIL-001")

	return f
}

func date(d int) time.Time {
	return time.Date(2024, 5, d, 0, 0, 0, 0, time.UTC)
}

func qty(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func movement(d int, in, out int64) usecase.EntryInput {
	return usecase.EntryInput{EntryDate: date(d), QuantityIn: qty(in), QuantityOut: qty(out)}
}

// assertConsistent recomputes the whole ledger and checks it against the
// stored balances and the record projection.
func (f *ledgerFixture) assertConsistent(t *testing.T) {
	t.Helper()

	entries := f.store.Entries(f.record.ID)
	require.Empty(t, domain.Verify(entries), "stored balances diverge from a recompute")

	latest, err := f.ledger.LatestBalance(context.Background(), owner, f.record.ID)
	require.NoError(t, err)

	record := f.store.Record(f.record.ID)
	assert.True(t, record.CurrentBalance.Equal(latest), "current_balance %s != latest %s", record.CurrentBalance, latest)
	assert.Equal(t, domain.StatusFor(latest), record.Status)
}

func (f *ledgerFixture) balances() []string {
	var out []string
	for _, e := range f.store.Entries(f.record.ID) {
		out = append(out, e.Balance.String())
	}
	return out
}

func TestLedgerScenarios(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, domain.CascadeStrict)

	// 1. First inflow.
	d1, err := f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(1, 100, 0))
	require.NoError(t, err)
	assert.True(t, d1.Balance.Equal(qty(100)))

	latest, err := f.ledger.LatestBalance(ctx, owner, f.record.ID)
	require.NoError(t, err)
	assert.True(t, latest.Equal(qty(100)))

	// 2. Outflow.
	d2, err := f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(2, 0, 30))
	require.NoError(t, err)
	assert.True(t, d2.Balance.Equal(qty(70)))

	// 3. Overdraw is rejected and nothing changes.
	_, err = f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(3, 0, 80))
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Len(t, f.store.Entries(f.record.ID), 2)
	assert.True(t, f.store.Record(f.record.ID).CurrentBalance.Equal(qty(70)))

	// 4. Editing the first entry cascades to the second.
	_, err = f.ledger.UpdateEntry(ctx, owner, d1.ID, movement(1, 60, 0))
	require.NoError(t, err)
	assert.Equal(t, []string{"60", "30"}, f.balances())

	record := f.store.Record(f.record.ID)
	assert.True(t, record.CurrentBalance.Equal(qty(30)))
	assert.Equal(t, domain.StatusInStock, record.Status)
	f.assertConsistent(t)

	// 5. Deleting the last entry leaves the first as latest.
	require.NoError(t, f.ledger.DeleteEntry(ctx, owner, d2.ID))
	assert.True(t, f.store.Record(f.record.ID).CurrentBalance.Equal(qty(60)))
	f.assertConsistent(t)

	// 6. The sole entry cannot be deleted.
	err = f.ledger.DeleteEntry(ctx, owner, d1.ID)
	require.ErrorIs(t, err, domain.ErrLastEntryUndeletable)
	assert.Len(t, f.store.Entries(f.record.ID), 1)
}

func TestCreateEntryBackdatedCascades(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, domain.CascadeStrict)

	_, err := f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(1, 100, 0))
	require.NoError(t, err)
	_, err = f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(5, 0, 40))
	require.NoError(t, err)

	e, err := f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(3, 20, 0))
	require.NoError(t, err)
	assert.True(t, e.Balance.Equal(qty(120)))
	assert.Equal(t, []string{"100", "120", "80"}, f.balances())
	assert.Equal(t, 1, f.metrics.Cascaded[domain.OpCreateEntry])
	f.assertConsistent(t)
}

func TestCreateEntryBackdatedOverdrawRejected(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, domain.CascadeStrict)

	_, err := f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(1, 100, 0))
	require.NoError(t, err)
	_, err = f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(5, 0, 90))
	require.NoError(t, err)

	// Fine on its own date, but drives the day 5 entry negative.
	_, err = f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(3, 0, 50))
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Equal(t, []string{"100", "10"}, f.balances())
}

func TestUpdateEntryMovesDate(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, domain.CascadeStrict)

	_, err := f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(1, 100, 0))
	require.NoError(t, err)
	out, err := f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(2, 0, 30))
	require.NoError(t, err)
	_, err = f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(3, 50, 0))
	require.NoError(t, err)

	updated, err := f.ledger.UpdateEntry(ctx, owner, out.ID, movement(4, 0, 30))
	require.NoError(t, err)
	assert.True(t, updated.Balance.Equal(qty(120)))
	assert.Equal(t, []string{"100", "150", "120"}, f.balances())
	f.assertConsistent(t)

	// Moved before the opening inflow it would overdraw.
	_, err = f.ledger.UpdateEntry(ctx, owner, out.ID, usecase.EntryInput{EntryDate: date(1).AddDate(0, 0, -1), QuantityOut: qty(30)})
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Equal(t, []string{"100", "150", "120"}, f.balances())
}

func TestUpdateEntryCascadePolicy(t *testing.T) {
	ctx := context.Background()

	setup := func(policy domain.CascadePolicy) (*ledgerFixture, *domain.Entry) {
		f := newLedgerFixture(t, policy)
		first, err := f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(1, 100, 0))
		require.NoError(t, err)
		_, err = f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(2, 0, 90))
		require.NoError(t, err)
		return f, first
	}

	strict, first := setup(domain.CascadeStrict)
	_, err := strict.ledger.UpdateEntry(ctx, owner, first.ID, movement(1, 50, 0))
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Equal(t, []string{"100", "10"}, strict.balances())

	permissive, first := setup(domain.CascadePermissive)
	_, err = permissive.ledger.UpdateEntry(ctx, owner, first.ID, movement(1, 50, 0))
	require.NoError(t, err)
	assert.Equal(t, []string{"50", "-40"}, permissive.balances())

	record := permissive.store.Record(permissive.record.ID)
	assert.Equal(t, domain.StatusDepleted, record.Status)
	permissive.assertConsistent(t)
}

func TestDeleteEntryCascades(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, domain.CascadeStrict)

	_, err := f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(1, 100, 0))
	require.NoError(t, err)
	out, err := f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(2, 0, 30))
	require.NoError(t, err)
	_, err = f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(3, 5, 0))
	require.NoError(t, err)

	require.NoError(t, f.ledger.DeleteEntry(ctx, owner, out.ID))
	assert.Equal(t, []string{"100", "105"}, f.balances())
	f.assertConsistent(t)
}

func TestDeleteInflowStrictRejected(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, domain.CascadeStrict)

	in, err := f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(1, 100, 0))
	require.NoError(t, err)
	_, err = f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(2, 0, 30))
	require.NoError(t, err)

	err = f.ledger.DeleteEntry(ctx, owner, in.ID)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Len(t, f.store.Entries(f.record.ID), 2)
}

func TestOwnerScoping(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, domain.CascadeStrict)

	e, err := f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(1, 10, 0))
	require.NoError(t, err)

	stranger := owner + 1

	_, err = f.ledger.CreateEntry(ctx, stranger, f.record.ID, movement(2, 10, 0))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.ledger.GetEntry(ctx, stranger, e.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.ledger.UpdateEntry(ctx, stranger, e.ID, movement(1, 20, 0))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, f.ledger.DeleteEntry(ctx, stranger, e.ID), domain.ErrNotFound)

	_, err = f.ledger.LatestBalance(ctx, stranger, f.record.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.ledger.ListEntries(ctx, usecase.ListEntriesInput{OwnerID: stranger, RecordID: f.record.ID})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestValidationOpensNoTransaction(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, domain.CascadeStrict)

	inputs := []usecase.EntryInput{
		{QuantityIn: qty(1)},
		{EntryDate: date(1)},
		{EntryDate: date(1), QuantityIn: qty(-1)},
		{EntryDate: date(1), QuantityIn: decimal.RequireFromString("0.001")},
	}

	for _, in := range inputs {
		_, err := f.ledger.CreateEntry(ctx, owner, f.record.ID, in)
		require.ErrorIs(t, err, domain.ErrValidation)
	}

	assert.Zero(t, f.txManager.Begun)
	assert.Equal(t, len(inputs), f.metrics.Failures[domain.OpCreateEntry+"/validating/validation_error"])
}

func TestCreateEntryRejectsBalanceAboveColumnRange(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, domain.CascadeStrict)
	limit := decimal.RequireFromString(domain.MaxQuantity)

	_, err := f.ledger.CreateEntry(ctx, owner, f.record.ID, usecase.EntryInput{EntryDate: date(1), QuantityIn: limit})
	require.NoError(t, err)

	_, err = f.ledger.CreateEntry(ctx, owner, f.record.ID, usecase.EntryInput{EntryDate: date(2), QuantityIn: limit})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.False(t, domain.IsRetryable(err))

	assert.Len(t, f.store.Entries(f.record.ID), 1)
	assert.True(t, f.store.Record(f.record.ID).CurrentBalance.Equal(limit))
}

func TestCreateEntryOnForeignRecordOpensNoTransaction(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, domain.CascadeStrict)

	_, err := f.ledger.CreateEntry(ctx, owner+1, f.record.ID, movement(1, 10, 0))
	require.ErrorIs(t, err, domain.ErrNotFound)

	assert.Zero(t, f.txManager.Begun)
	assert.Empty(t, f.store.Entries(f.record.ID))
}

func TestFailedCascadeRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, domain.CascadeStrict)

	first, err := f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(1, 100, 0))
	require.NoError(t, err)
	_, err = f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(2, 0, 30))
	require.NoError(t, err)
	_, err = f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(3, 0, 10))
	require.NoError(t, err)

	before := f.balances()
	beforeRecord := f.store.Record(f.record.ID)

	// Fail halfway through the cascade, after the target was written.
	writes := 0
	f.entries.UpdateBalanceFunc = func(ctx context.Context, tx usecase.Transaction, id int64, balance decimal.Decimal, updatedAt time.Time) error {
		writes++
		if writes == 2 {
			return errors.New("connection reset by peer")
		}
		return nil
	}

	_, err = f.ledger.UpdateEntry(ctx, owner, first.ID, movement(1, 80, 0))
	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.True(t, domain.IsRetryable(err))

	assert.Equal(t, before, f.balances())
	assert.True(t, beforeRecord.CurrentBalance.Equal(f.store.Record(f.record.ID).CurrentBalance))
	assert.Equal(t, 1, f.metrics.Failures[domain.OpUpdateEntry+"/persisting/persistence_failure"])
}

func TestProjectionFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, domain.CascadeStrict)

	f.records.UpdateAggregateFunc = func(ctx context.Context, tx usecase.Transaction, id int64, balance decimal.Decimal, status domain.RecordStatus, updatedAt time.Time) error {
		return errors.New("disk full")
	}

	_, err := f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(1, 100, 0))
	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.Empty(t, f.store.Entries(f.record.ID))
	assert.Equal(t, 1, f.metrics.Failures[domain.OpCreateEntry+"/projecting/persistence_failure"])
}

func TestLockTimeoutIsContention(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, domain.CascadeStrict)

	f.records.GetByIDForUpdateFunc = func(ctx context.Context, tx usecase.Transaction, ownerID, id int64) (*domain.Record, error) {
		return nil, context.DeadlineExceeded
	}

	_, err := f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(1, 100, 0))
	require.ErrorIs(t, err, domain.ErrContention)
	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, 1, f.metrics.Failures[domain.OpCreateEntry+"/locking/contention"])
}

func TestLockOrder(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, domain.CascadeStrict)

	first, err := f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(3, 100, 0))
	require.NoError(t, err)
	_, err = f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(1, 10, 0))
	require.NoError(t, err)
	_, err = f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(4, 0, 5))
	require.NoError(t, err)

	f.store.LockLog = nil

	_, err = f.ledger.UpdateEntry(ctx, owner, first.ID, movement(2, 100, 0))
	require.NoError(t, err)

	// Record first, then entries from day 2 onwards by ascending id.
	assert.Equal(t, []string{"record:1", "entry:1", "entry:3"}, f.store.LockLog)
}

func TestListEntriesPagination(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, domain.CascadeStrict)

	for d := 1; d <= 5; d++ {
		_, err := f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(d, 10, 0))
		require.NoError(t, err)
	}

	page, err := f.ledger.ListEntries(ctx, usecase.ListEntriesInput{OwnerID: owner, RecordID: f.record.ID, Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, date(5), page.Entries[0].EntryDate)
	assert.Equal(t, date(4), page.Entries[1].EntryDate)
	assert.Equal(t, domain.Pagination{Total: 5, Page: 1, PageSize: 2, TotalPages: 3}, page.Pagination)

	page, err = f.ledger.ListEntries(ctx, usecase.ListEntriesInput{OwnerID: owner, RecordID: f.record.ID, Page: 3, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, date(1), page.Entries[0].EntryDate)
}

func TestListEntriesRejectsPageBeyondOffsetRange(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, domain.CascadeStrict)

	_, err := f.ledger.ListEntries(ctx, usecase.ListEntriesInput{OwnerID: owner, RecordID: f.record.ID, Page: 107374184, PageSize: 20})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.False(t, domain.IsRetryable(err))
}

func TestMutationInvalidatesSummaryCache(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, domain.CascadeStrict)

	summaries := usecase.NewSummaryUseCase(f.records, f.entries, f.cache, time.Minute)
	generation := func() string {
		v, _ := f.cache.Get(ctx, fmt.Sprintf("summary:%d:gen", owner))
		return string(v)
	}

	_, err := f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(1, 100, 0))
	require.NoError(t, err)

	s, err := summaries.RecordSummary(ctx, owner, f.record.ID)
	require.NoError(t, err)
	assert.True(t, s.CurrentBalance.Equal(qty(100)))

	before := generation()
	require.NotEmpty(t, before)
	assert.True(t, f.cache.Has(fmt.Sprintf("summary:%d:%s:record:%d", owner, before, f.record.ID)))

	_, err = f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(2, 0, 25))
	require.NoError(t, err)
	assert.NotEqual(t, before, generation())
	assert.False(t, f.cache.Has(fmt.Sprintf("summary:%d:%s:record:%d", owner, before, f.record.ID)))

	s, err = summaries.RecordSummary(ctx, owner, f.record.ID)
	require.NoError(t, err)
	assert.True(t, s.CurrentBalance.Equal(qty(75)))
	assert.True(t, s.TotalOut.Equal(qty(25)))
}

// entriesCommittingDuringTotals runs a mutation after the totals were read,
// the way a concurrent writer can commit while a summary is being built.
type entriesCommittingDuringTotals struct {
	*mocks.MockEntryRepository
	commit func()
}

func (r *entriesCommittingDuringTotals) Totals(ctx context.Context, recordID int64) (domain.RecordTotals, error) {
	totals, err := r.MockEntryRepository.Totals(ctx, recordID)
	if r.commit != nil {
		commit := r.commit
		r.commit = nil
		commit()
	}
	return totals, err
}

func TestSummaryReadBeforeCommitIsNotCached(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, domain.CascadeStrict)

	_, err := f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(1, 100, 0))
	require.NoError(t, err)

	entries := &entriesCommittingDuringTotals{MockEntryRepository: f.entries}
	entries.commit = func() {
		_, err := f.ledger.CreateEntry(ctx, owner, f.record.ID, movement(2, 0, 40))
		require.NoError(t, err)
	}
	summaries := usecase.NewSummaryUseCase(f.records, entries, f.cache, time.Minute)

	s, err := summaries.RecordSummary(ctx, owner, f.record.ID)
	require.NoError(t, err)
	assert.True(t, s.CurrentBalance.Equal(qty(100)))

	s, err = summaries.RecordSummary(ctx, owner, f.record.ID)
	require.NoError(t, err)
	assert.True(t, s.CurrentBalance.Equal(qty(60)))
	assert.True(t, s.TotalOut.Equal(qty(40)))
}
