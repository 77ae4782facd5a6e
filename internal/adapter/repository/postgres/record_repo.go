package postgres

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/infrastructure/postgres/generated"
	"github.com/iho/stockledger/internal/usecase"
)

// RecordRepository implements usecase.RecordRepository.
type RecordRepository struct {
	queries *generated.Queries
}

// NewRecordRepository creates a new RecordRepository. db is usually a
// *pgxpool.Pool.
func NewRecordRepository(db generated.DBTX) *RecordRepository {
	return &RecordRepository{
		queries: generated.New(db),
	}
}

// Create inserts a record and sets its ID.
func (r *RecordRepository) Create(ctx context.Context, tx usecase.Transaction, record *domain.Record) error {
	id, err := txQueries(tx).CreateRecord(ctx, generated.CreateRecordParams{
		OwnerID:        record.OwnerID,
		Code:           record.Code,
		CurrentBalance: decimalToNumeric(record.CurrentBalance),
		Status:         string(record.Status),
		CreatedAt:      timeToPgTimestamptz(record.CreatedAt),
		UpdatedAt:      timeToPgTimestamptz(record.UpdatedAt),
	})
	if err != nil {
		return classifyError(err)
	}

	record.ID = id

	return nil
}

// Exists reports whether the owner holds the record.
func (r *RecordRepository) Exists(ctx context.Context, ownerID, id int64) (bool, error) {
	exists, err := r.queries.RecordExists(ctx, generated.RecordExistsParams{ID: id, OwnerID: ownerID})
	if err != nil {
		return false, classifyError(err)
	}

	return exists, nil
}

// GetByID retrieves a record owned by ownerID.
func (r *RecordRepository) GetByID(ctx context.Context, ownerID, id int64) (*domain.Record, error) {
	row, err := r.queries.GetRecordByID(ctx, generated.GetRecordByIDParams{ID: id, OwnerID: ownerID})
	if err != nil {
		return nil, classifyError(err)
	}

	return rowToRecord(row), nil
}

// GetByIDForUpdate retrieves a record with a FOR UPDATE lock. Every ledger
// write takes this lock first.
func (r *RecordRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, ownerID, id int64) (*domain.Record, error) {
	row, err := txQueries(tx).GetRecordByIDForUpdate(ctx, generated.GetRecordByIDForUpdateParams{ID: id, OwnerID: ownerID})
	if err != nil {
		return nil, classifyError(err)
	}

	return rowToRecord(row), nil
}

// List retrieves the owner's records ordered by id.
func (r *RecordRepository) List(ctx context.Context, ownerID int64, limit, offset int) ([]*domain.Record, error) {
	rows, err := r.queries.ListRecordsByOwner(ctx, generated.ListRecordsByOwnerParams{
		OwnerID: ownerID,
		Limit:   int32(limit),
		Offset:  int32(offset),
	})
	if err != nil {
		return nil, classifyError(err)
	}

	records := make([]*domain.Record, len(rows))
	for i, row := range rows {
		records[i] = rowToRecord(row)
	}

	return records, nil
}

// Count returns how many records the owner holds.
func (r *RecordRepository) Count(ctx context.Context, ownerID int64) (int64, error) {
	count, err := r.queries.CountRecordsByOwner(ctx, ownerID)
	if err != nil {
		return 0, classifyError(err)
	}

	return count, nil
}

// UpdateAggregate writes the projected balance and status.
func (r *RecordRepository) UpdateAggregate(ctx context.Context, tx usecase.Transaction, id int64, balance decimal.Decimal, status domain.RecordStatus, updatedAt time.Time) error {
	err := txQueries(tx).UpdateRecordAggregate(ctx, generated.UpdateRecordAggregateParams{
		ID:             id,
		CurrentBalance: decimalToNumeric(balance),
		Status:         string(status),
		UpdatedAt:      timeToPgTimestamptz(updatedAt),
	})

	return classifyError(err)
}

// Delete removes the record; its entries go with it.
func (r *RecordRepository) Delete(ctx context.Context, tx usecase.Transaction, id int64) error {
	return classifyError(txQueries(tx).DeleteRecord(ctx, id))
}

func rowToRecord(row generated.Record) *domain.Record {
	return &domain.Record{
		ID:             row.ID,
		OwnerID:        row.OwnerID,
		Code:           row.Code,
		CurrentBalance: numericToDecimal(row.CurrentBalance),
		Status:         domain.RecordStatus(row.Status),
		CreatedAt:      row.CreatedAt.Time,
		UpdatedAt:      row.UpdatedAt.Time,
	}
}

func txQueries(tx usecase.Transaction) *generated.Queries {
	return generated.New(tx.(*Tx).PgxTx())
}
