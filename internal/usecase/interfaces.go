package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/stockledger/internal/domain"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// RecordRepository defines data access for stock records.
// Every owner-scoped lookup returns domain.ErrNotFound for records owned by
// someone else.
type RecordRepository interface {
	Create(ctx context.Context, tx Transaction, record *domain.Record) error
	Exists(ctx context.Context, ownerID, id int64) (bool, error)
	GetByID(ctx context.Context, ownerID, id int64) (*domain.Record, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, ownerID, id int64) (*domain.Record, error)
	List(ctx context.Context, ownerID int64, limit, offset int) ([]*domain.Record, error)
	Count(ctx context.Context, ownerID int64) (int64, error)
	UpdateAggregate(ctx context.Context, tx Transaction, id int64, balance decimal.Decimal, status domain.RecordStatus, updatedAt time.Time) error
	Delete(ctx context.Context, tx Transaction, id int64) error
}

// EntryRepository defines data access for ledger entries.
type EntryRepository interface {
	// Create inserts the entry and sets its ID.
	Create(ctx context.Context, tx Transaction, entry *domain.Entry) error
	GetByID(ctx context.Context, ownerID, id int64) (*domain.Entry, error)
	GetByIDTx(ctx context.Context, tx Transaction, ownerID, id int64) (*domain.Entry, error)
	// ListByRecord returns a page of entries, most recent first.
	ListByRecord(ctx context.Context, recordID int64, limit, offset int) ([]*domain.Entry, error)
	// ListCanonical returns every entry of the record in canonical order.
	ListCanonical(ctx context.Context, recordID int64) ([]*domain.Entry, error)
	CountByRecord(ctx context.Context, recordID int64) (int64, error)
	CountByRecordTx(ctx context.Context, tx Transaction, recordID int64) (int64, error)
	LatestBalance(ctx context.Context, recordID int64) (decimal.Decimal, error)
	LatestBalanceTx(ctx context.Context, tx Transaction, recordID int64) (decimal.Decimal, error)
	// BalanceBefore returns the balance of the last entry dated strictly
	// before date, or zero.
	BalanceBefore(ctx context.Context, tx Transaction, recordID int64, date time.Time) (decimal.Decimal, error)
	// LockFrom locks every entry dated on or after date in ascending id order
	// and returns them.
	LockFrom(ctx context.Context, tx Transaction, recordID int64, date time.Time) ([]*domain.Entry, error)
	Update(ctx context.Context, tx Transaction, entry *domain.Entry) error
	UpdateBalance(ctx context.Context, tx Transaction, id int64, balance decimal.Decimal, updatedAt time.Time) error
	Delete(ctx context.Context, tx Transaction, id int64) error
	Totals(ctx context.Context, recordID int64) (domain.RecordTotals, error)
	SummaryByOwner(ctx context.Context, ownerID int64) ([]*domain.RecordSummary, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release forgets a key whose request failed so it can be resubmitted.
	Release(ctx context.Context, key string) error
}

// MetricsRecorder receives ledger mutation telemetry.
type MetricsRecorder interface {
	ObserveMutation(op string, state domain.MutationState, elapsed time.Duration)
	IncMutationFailure(op string, stage domain.MutationState, kind string)
	ObserveCascade(op string, rewritten int)
}

type nopMetrics struct{}

func (nopMetrics) ObserveMutation(string, domain.MutationState, time.Duration) {}
func (nopMetrics) IncMutationFailure(string, domain.MutationState, string) {}
func (nopMetrics) ObserveCascade(string, int) {}
