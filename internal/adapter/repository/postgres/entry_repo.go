package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/infrastructure/postgres/generated"
	"github.com/iho/stockledger/internal/usecase"
)

// EntryRepository implements usecase.EntryRepository.
type EntryRepository struct {
	queries *generated.Queries
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(db generated.DBTX) *EntryRepository {
	return &EntryRepository{
		queries: generated.New(db),
	}
}

// Create inserts an entry and sets its ID.
func (r *EntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.Entry) error {
	id, err := txQueries(tx).CreateStockEntry(ctx, generated.CreateStockEntryParams{
		RecordID:    entry.RecordID,
		EntryDate:   dateToPgDate(entry.EntryDate),
		QuantityIn:  decimalToNumeric(entry.QuantityIn),
		QuantityOut: decimalToNumeric(entry.QuantityOut),
		Balance:     decimalToNumeric(entry.Balance),
		Remarks:     entry.Remarks,
		CreatedAt:   timeToPgTimestamptz(entry.CreatedAt),
		UpdatedAt:   timeToPgTimestamptz(entry.UpdatedAt),
	})
	if err != nil {
		return classifyError(err)
	}

	entry.ID = id

	return nil
}

// GetByID retrieves an entry whose record belongs to ownerID.
func (r *EntryRepository) GetByID(ctx context.Context, ownerID, id int64) (*domain.Entry, error) {
	return getEntry(ctx, r.queries, ownerID, id)
}

// GetByIDTx is GetByID inside tx, so reads taken after the record lock see
// the committed state.
func (r *EntryRepository) GetByIDTx(ctx context.Context, tx usecase.Transaction, ownerID, id int64) (*domain.Entry, error) {
	return getEntry(ctx, txQueries(tx), ownerID, id)
}

func getEntry(ctx context.Context, q *generated.Queries, ownerID, id int64) (*domain.Entry, error) {
	row, err := q.GetStockEntryByID(ctx, generated.GetStockEntryByIDParams{ID: id, OwnerID: ownerID})
	if err != nil {
		return nil, classifyError(err)
	}

	return rowToEntry(row), nil
}

// ListByRecord returns a page of entries, most recent first.
func (r *EntryRepository) ListByRecord(ctx context.Context, recordID int64, limit, offset int) ([]*domain.Entry, error) {
	rows, err := r.queries.ListStockEntriesByRecord(ctx, generated.ListStockEntriesByRecordParams{
		RecordID: recordID,
		Limit:    int32(limit),
		Offset:   int32(offset),
	})
	if err != nil {
		return nil, classifyError(err)
	}

	return rowsToEntries(rows), nil
}

// ListCanonical returns every entry of the record by (entry_date, id).
func (r *EntryRepository) ListCanonical(ctx context.Context, recordID int64) ([]*domain.Entry, error) {
	rows, err := r.queries.ListStockEntriesCanonical(ctx, recordID)
	if err != nil {
		return nil, classifyError(err)
	}

	return rowsToEntries(rows), nil
}

// CountByRecord returns the number of entries on the record.
func (r *EntryRepository) CountByRecord(ctx context.Context, recordID int64) (int64, error) {
	count, err := r.queries.CountStockEntriesByRecord(ctx, recordID)
	if err != nil {
		return 0, classifyError(err)
	}

	return count, nil
}

// CountByRecordTx is CountByRecord inside tx.
func (r *EntryRepository) CountByRecordTx(ctx context.Context, tx usecase.Transaction, recordID int64) (int64, error) {
	count, err := txQueries(tx).CountStockEntriesByRecord(ctx, recordID)
	if err != nil {
		return 0, classifyError(err)
	}

	return count, nil
}

// LatestBalance returns the balance of the last entry, or zero for an empty
// ledger.
func (r *EntryRepository) LatestBalance(ctx context.Context, recordID int64) (decimal.Decimal, error) {
	return optionalBalance(r.queries.GetLatestStockBalance(ctx, recordID))
}

// LatestBalanceTx is LatestBalance inside tx.
func (r *EntryRepository) LatestBalanceTx(ctx context.Context, tx usecase.Transaction, recordID int64) (decimal.Decimal, error) {
	return optionalBalance(txQueries(tx).GetLatestStockBalance(ctx, recordID))
}

// BalanceBefore returns the balance of the last entry dated before date.
func (r *EntryRepository) BalanceBefore(ctx context.Context, tx usecase.Transaction, recordID int64, date time.Time) (decimal.Decimal, error) {
	return optionalBalance(txQueries(tx).GetStockBalanceBefore(ctx, generated.GetStockBalanceBeforeParams{
		RecordID:  recordID,
		EntryDate: dateToPgDate(date),
	}))
}

// LockFrom locks the suffix of the ledger starting at date. Rows are locked
// in id order so concurrent writers on one record cannot deadlock.
func (r *EntryRepository) LockFrom(ctx context.Context, tx usecase.Transaction, recordID int64, date time.Time) ([]*domain.Entry, error) {
	rows, err := txQueries(tx).LockStockEntriesFrom(ctx, generated.LockStockEntriesFromParams{
		RecordID:  recordID,
		EntryDate: dateToPgDate(date),
	})
	if err != nil {
		return nil, classifyError(err)
	}

	return rowsToEntries(rows), nil
}

// Update rewrites the movement fields and balance of an entry.
func (r *EntryRepository) Update(ctx context.Context, tx usecase.Transaction, entry *domain.Entry) error {
	affected, err := txQueries(tx).UpdateStockEntry(ctx, generated.UpdateStockEntryParams{
		ID:          entry.ID,
		EntryDate:   dateToPgDate(entry.EntryDate),
		QuantityIn:  decimalToNumeric(entry.QuantityIn),
		QuantityOut: decimalToNumeric(entry.QuantityOut),
		Balance:     decimalToNumeric(entry.Balance),
		Remarks:     entry.Remarks,
		UpdatedAt:   timeToPgTimestamptz(entry.UpdatedAt),
	})

	return expectAffected(affected, err, entry.ID)
}

// UpdateBalance rewrites only the materialized balance.
func (r *EntryRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, id int64, balance decimal.Decimal, updatedAt time.Time) error {
	affected, err := txQueries(tx).UpdateStockEntryBalance(ctx, generated.UpdateStockEntryBalanceParams{
		ID:        id,
		Balance:   decimalToNumeric(balance),
		UpdatedAt: timeToPgTimestamptz(updatedAt),
	})

	return expectAffected(affected, err, id)
}

// Delete removes an entry.
func (r *EntryRepository) Delete(ctx context.Context, tx usecase.Transaction, id int64) error {
	affected, err := txQueries(tx).DeleteStockEntry(ctx, id)

	return expectAffected(affected, err, id)
}

// Totals aggregates the record's ledger.
func (r *EntryRepository) Totals(ctx context.Context, recordID int64) (domain.RecordTotals, error) {
	row, err := r.queries.GetRecordTotals(ctx, recordID)
	if err != nil {
		return domain.RecordTotals{}, classifyError(err)
	}

	return domain.RecordTotals{
		TotalIn:        numericToDecimal(row.TotalIn),
		TotalOut:       numericToDecimal(row.TotalOut),
		CurrentBalance: numericToDecimal(row.CurrentBalance),
		EntryCount:     row.EntryCount,
	}, nil
}

// SummaryByOwner aggregates every record of the owner, ordered by record id.
func (r *EntryRepository) SummaryByOwner(ctx context.Context, ownerID int64) ([]*domain.RecordSummary, error) {
	rows, err := r.queries.SummarizeOwner(ctx, ownerID)
	if err != nil {
		return nil, classifyError(err)
	}

	summaries := make([]*domain.RecordSummary, len(rows))
	for i, row := range rows {
		balance := numericToDecimal(row.CurrentBalance)
		summaries[i] = &domain.RecordSummary{
			RecordID: row.ID,
			Code:     row.Code,
			Status:   domain.StatusFor(balance),
			RecordTotals: domain.RecordTotals{
				TotalIn:        numericToDecimal(row.TotalIn),
				TotalOut:       numericToDecimal(row.TotalOut),
				CurrentBalance: balance,
				EntryCount:     row.EntryCount,
			},
		}
	}

	return summaries, nil
}

func optionalBalance(n pgtype.Numeric, err error) (decimal.Decimal, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, classifyError(err)
	}

	return numericToDecimal(n), nil
}

func expectAffected(affected int64, err error, id int64) error {
	if err != nil {
		return classifyError(err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: entry %d", domain.ErrNotFound, id)
	}

	return nil
}

func rowToEntry(row generated.StockEntry) *domain.Entry {
	return &domain.Entry{
		ID:          row.ID,
		RecordID:    row.RecordID,
		EntryDate:   pgDateToTime(row.EntryDate),
		QuantityIn:  numericToDecimal(row.QuantityIn),
		QuantityOut: numericToDecimal(row.QuantityOut),
		Balance:     numericToDecimal(row.Balance),
		Remarks:     row.Remarks,
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}
}

func rowsToEntries(rows []generated.StockEntry) []*domain.Entry {
	entries := make([]*domain.Entry, len(rows))
	for i, row := range rows {
		entries[i] = rowToEntry(row)
	}

	return entries
}
