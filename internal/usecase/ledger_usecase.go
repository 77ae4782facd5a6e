package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/stockledger/internal/domain"
)

// LedgerUseCase handles entry operations on a record's ledger.
type LedgerUseCase struct {
	txManager  TransactionManager
	recordRepo RecordRepository
	entryRepo  EntryRepository
	cascader   *Cascader
	projector  *Projector
	cache      Cache
	metrics    MetricsRecorder
	txTimeout  time.Duration
}

// LedgerOption configures a LedgerUseCase.
type LedgerOption func(*LedgerUseCase)

// WithCache invalidates cached summaries after each committed mutation.
func WithCache(cache Cache) LedgerOption {
	return func(uc *LedgerUseCase) { uc.cache = cache }
}

// WithMetrics records mutation telemetry.
func WithMetrics(metrics MetricsRecorder) LedgerOption {
	return func(uc *LedgerUseCase) {
		if metrics != nil {
			uc.metrics = metrics
		}
	}
}

// WithTransactionTimeout bounds each mutation. Zero disables the bound.
func WithTransactionTimeout(d time.Duration) LedgerOption {
	return func(uc *LedgerUseCase) { uc.txTimeout = d }
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(
	txManager TransactionManager,
	recordRepo RecordRepository,
	entryRepo EntryRepository,
	policy domain.CascadePolicy,
	opts ...LedgerOption,
) *LedgerUseCase {
	uc := &LedgerUseCase{
		txManager:  txManager,
		recordRepo: recordRepo,
		entryRepo:  entryRepo,
		cascader:   NewCascader(recordRepo, entryRepo, policy),
		projector:  NewProjector(recordRepo, entryRepo),
		metrics:    nopMetrics{},
		txTimeout:  DefaultTransactionTimeout,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// EntryInput carries the user-editable fields of an entry.
type EntryInput struct {
	EntryDate   time.Time
	QuantityIn  decimal.Decimal
	QuantityOut decimal.Decimal
	Remarks     string
}

func (in EntryInput) normalize() (EntryInput, error) {
	in.Remarks = strings.TrimSpace(in.Remarks)
	if !in.EntryDate.IsZero() {
		in.EntryDate = domain.NormalizeDate(in.EntryDate)
	}

	if err := domain.ValidateMovement(in.EntryDate, in.QuantityIn, in.QuantityOut, in.Remarks); err != nil {
		return in, err
	}

	return in, nil
}

// ListEntriesInput selects a page of a record's history.
type ListEntriesInput struct {
	OwnerID  int64
	RecordID int64
	Page     int
	PageSize int
}

// EntryPage is one page of a record's history, most recent first.
type EntryPage struct {
	Entries    []*domain.Entry
	Pagination domain.Pagination
}

// CreateEntry records a new movement on a record. The entry lands at its
// canonical position and every later entry is cascaded.
func (uc *LedgerUseCase) CreateEntry(ctx context.Context, ownerID, recordID int64, input EntryInput) (*domain.Entry, error) {
	m := startMutation(ctx, uc.metrics, domain.OpCreateEntry)

	input, err := input.normalize()
	if err != nil {
		return nil, m.finish(err)
	}

	if err := uc.requireRecord(ctx, ownerID, recordID); err != nil {
		return nil, m.finish(err)
	}

	now := time.Now().UTC()
	entry := &domain.Entry{
		RecordID:    recordID,
		EntryDate:   input.EntryDate,
		QuantityIn:  input.QuantityIn,
		QuantityOut: input.QuantityOut,
		Remarks:     input.Remarks,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = inTx(ctx, uc.txManager, uc.txTimeout, m, func(ctx context.Context, tx Transaction) error {
		plan, err := uc.cascader.Insert(ctx, tx, m, ownerID, entry)
		if err != nil {
			return err
		}

		return uc.project(ctx, tx, m, recordID, plan, now)
	})
	if err != nil {
		return nil, m.finish(err)
	}

	uc.invalidate(ctx, ownerID, recordID)

	return entry, m.finish(nil)
}

// UpdateEntry replaces the editable fields of an entry and cascades.
func (uc *LedgerUseCase) UpdateEntry(ctx context.Context, ownerID, entryID int64, input EntryInput) (*domain.Entry, error) {
	m := startMutation(ctx, uc.metrics, domain.OpUpdateEntry)

	input, err := input.normalize()
	if err != nil {
		return nil, m.finish(err)
	}

	// Ownership check and record lookup. record_id never changes.
	existing, err := uc.entryRepo.GetByID(ctx, ownerID, entryID)
	if err != nil {
		return nil, m.finish(err)
	}

	now := time.Now().UTC()
	updated := &domain.Entry{
		ID:          entryID,
		RecordID:    existing.RecordID,
		EntryDate:   input.EntryDate,
		QuantityIn:  input.QuantityIn,
		QuantityOut: input.QuantityOut,
		Remarks:     input.Remarks,
		UpdatedAt:   now,
	}

	err = inTx(ctx, uc.txManager, uc.txTimeout, m, func(ctx context.Context, tx Transaction) error {
		plan, err := uc.cascader.Replace(ctx, tx, m, ownerID, existing.RecordID, updated)
		if err != nil {
			return err
		}

		return uc.project(ctx, tx, m, existing.RecordID, plan, now)
	})
	if err != nil {
		return nil, m.finish(err)
	}

	uc.invalidate(ctx, ownerID, existing.RecordID)

	return updated, m.finish(nil)
}

// DeleteEntry removes an entry and cascades the entries after it.
func (uc *LedgerUseCase) DeleteEntry(ctx context.Context, ownerID, entryID int64) error {
	m := startMutation(ctx, uc.metrics, domain.OpDeleteEntry)

	existing, err := uc.entryRepo.GetByID(ctx, ownerID, entryID)
	if err != nil {
		return m.finish(err)
	}

	now := time.Now().UTC()

	err = inTx(ctx, uc.txManager, uc.txTimeout, m, func(ctx context.Context, tx Transaction) error {
		plan, err := uc.cascader.Remove(ctx, tx, m, ownerID, existing.RecordID, entryID, now)
		if err != nil {
			return err
		}

		return uc.project(ctx, tx, m, existing.RecordID, plan, now)
	})
	if err != nil {
		return m.finish(err)
	}

	uc.invalidate(ctx, ownerID, existing.RecordID)

	return m.finish(nil)
}

// GetEntry returns an entry if its record belongs to ownerID.
func (uc *LedgerUseCase) GetEntry(ctx context.Context, ownerID, entryID int64) (*domain.Entry, error) {
	return uc.entryRepo.GetByID(ctx, ownerID, entryID)
}

// ListEntries returns a page of a record's history, most recent first.
func (uc *LedgerUseCase) ListEntries(ctx context.Context, input ListEntriesInput) (*EntryPage, error) {
	if err := uc.requireRecord(ctx, input.OwnerID, input.RecordID); err != nil {
		return nil, err
	}

	page, pageSize, err := domain.ValidatePagination(input.Page, input.PageSize)
	if err != nil {
		return nil, err
	}

	total, err := uc.entryRepo.CountByRecord(ctx, input.RecordID)
	if err != nil {
		return nil, err
	}

	entries, err := uc.entryRepo.ListByRecord(ctx, input.RecordID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}

	return &EntryPage{
		Entries:    entries,
		Pagination: domain.NewPagination(total, page, pageSize),
	}, nil
}

// LatestBalance returns the balance after the chronologically last entry,
// or zero for an empty ledger.
func (uc *LedgerUseCase) LatestBalance(ctx context.Context, ownerID, recordID int64) (decimal.Decimal, error) {
	if err := uc.requireRecord(ctx, ownerID, recordID); err != nil {
		return decimal.Zero, err
	}

	return uc.entryRepo.LatestBalance(ctx, recordID)
}

func (uc *LedgerUseCase) requireRecord(ctx context.Context, ownerID, recordID int64) error {
	ok, err := uc.recordRepo.Exists(ctx, ownerID, recordID)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("%w: record %d", domain.ErrNotFound, recordID)
	}

	return nil
}

func (uc *LedgerUseCase) project(ctx context.Context, tx Transaction, m *mutation, recordID int64, plan *domain.CascadePlan, now time.Time) error {
	uc.metrics.ObserveCascade(m.op, len(plan.Changed))

	m.advance(domain.StateProjecting)

	balance, status, err := uc.projector.Project(ctx, tx, recordID, now)
	if err != nil {
		return err
	}

	m.logger.Debug().
		Int64("record_id", recordID).
		Int("cascaded", len(plan.Changed)).
		Str("balance", balance.String()).
		Str("status", string(status)).
		Msg("record projected")

	return nil
}

func (uc *LedgerUseCase) invalidate(ctx context.Context, ownerID, recordID int64) {
	invalidateSummaries(ctx, uc.cache, zerolog.Ctx(ctx), ownerID, recordID)
}
