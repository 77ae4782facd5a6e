package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/stockledger/internal/domain"
)

// RecordUseCase handles the lifecycle of stock records.
type RecordUseCase struct {
	txManager  TransactionManager
	recordRepo RecordRepository
	entryRepo  EntryRepository
	projector  *Projector
	cache      Cache
	metrics    MetricsRecorder
	txTimeout  time.Duration
}

// NewRecordUseCase creates a new RecordUseCase. cache and metrics may be nil.
func NewRecordUseCase(
	txManager TransactionManager,
	recordRepo RecordRepository,
	entryRepo EntryRepository,
	cache Cache,
	metrics MetricsRecorder,
) *RecordUseCase {
	if metrics == nil {
		metrics = nopMetrics{}
	}

	return &RecordUseCase{
		txManager:  txManager,
		recordRepo: recordRepo,
		entryRepo:  entryRepo,
		projector:  NewProjector(recordRepo, entryRepo),
		cache:      cache,
		metrics:    metrics,
		txTimeout:  DefaultTransactionTimeout,
	}
}

// SetTransactionTimeout bounds each write transaction. Non-positive values
// keep the current bound.
func (uc *RecordUseCase) SetTransactionTimeout(d time.Duration) {
	if d > 0 {
		uc.txTimeout = d
	}
}

// CreateRecordInput describes a new record and its optional opening stock.
type CreateRecordInput struct {
	OpeningDate     time.Time
	OpeningQuantity decimal.Decimal
	Code            string
	OwnerID         int64
}

// RecordPage is one page of an owner's records.
type RecordPage struct {
	Records    []*domain.Record
	Pagination domain.Pagination
}

// CreateRecord creates a record. A positive opening quantity is booked as an
// ordinary inflow entry remarked "opening balance".
func (uc *RecordUseCase) CreateRecord(ctx context.Context, input CreateRecordInput) (*domain.Record, error) {
	m := startMutation(ctx, uc.metrics, domain.OpCreateRecord)

	code := strings.TrimSpace(input.Code)
	if err := domain.ValidateRecordCode(code); err != nil {
		return nil, m.finish(err)
	}

	opening := input.OpeningQuantity.IsPositive()
	openingDate := input.OpeningDate
	if opening {
		if openingDate.IsZero() {
			openingDate = time.Now().UTC()
		}
		openingDate = domain.NormalizeDate(openingDate)

		if err := domain.ValidateMovement(openingDate, input.OpeningQuantity, decimal.Zero, domain.OpeningBalanceRemarks); err != nil {
			return nil, m.finish(err)
		}
	} else if input.OpeningQuantity.IsNegative() {
		return nil, m.finish(domain.ValidateQuantity("opening quantity", input.OpeningQuantity))
	}

	now := time.Now().UTC()
	record := &domain.Record{
		OwnerID:        input.OwnerID,
		Code:           code,
		CurrentBalance: decimal.Zero,
		Status:         domain.StatusDepleted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := inTx(ctx, uc.txManager, uc.txTimeout, m, func(ctx context.Context, tx Transaction) error {
		m.advance(domain.StatePersisting)

		if err := uc.recordRepo.Create(ctx, tx, record); err != nil {
			return err
		}

		if !opening {
			return nil
		}

		entry := &domain.Entry{
			RecordID:    record.ID,
			EntryDate:   openingDate,
			QuantityIn:  input.OpeningQuantity,
			QuantityOut: decimal.Zero,
			Balance:     input.OpeningQuantity,
			Remarks:     domain.OpeningBalanceRemarks,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := uc.entryRepo.Create(ctx, tx, entry); err != nil {
			return err
		}

		m.advance(domain.StateProjecting)

		balance, status, err := uc.projector.Project(ctx, tx, record.ID, now)
		if err != nil {
			return err
		}

		record.CurrentBalance = balance
		record.Status = status

		return nil
	})
	if err != nil {
		return nil, m.finish(err)
	}

	invalidateSummaries(ctx, uc.cache, zerolog.Ctx(ctx), input.OwnerID, 0)

	return record, m.finish(nil)
}

// GetRecord returns a record owned by ownerID.
func (uc *RecordUseCase) GetRecord(ctx context.Context, ownerID, recordID int64) (*domain.Record, error) {
	return uc.recordRepo.GetByID(ctx, ownerID, recordID)
}

// ListRecords returns a page of the owner's records.
func (uc *RecordUseCase) ListRecords(ctx context.Context, ownerID int64, page, pageSize int) (*RecordPage, error) {
	page, pageSize, err := domain.ValidatePagination(page, pageSize)
	if err != nil {
		return nil, err
	}

	total, err := uc.recordRepo.Count(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	records, err := uc.recordRepo.List(ctx, ownerID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}

	return &RecordPage{
		Records:    records,
		Pagination: domain.NewPagination(total, page, pageSize),
	}, nil
}

// DeleteRecord removes a record together with its ledger.
func (uc *RecordUseCase) DeleteRecord(ctx context.Context, ownerID, recordID int64) error {
	m := startMutation(ctx, uc.metrics, domain.OpDeleteRecord)

	err := inTx(ctx, uc.txManager, uc.txTimeout, m, func(ctx context.Context, tx Transaction) error {
		record, err := uc.recordRepo.GetByIDForUpdate(ctx, tx, ownerID, recordID)
		if err != nil {
			return err
		}

		m.advance(domain.StatePersisting)

		return uc.recordRepo.Delete(ctx, tx, record.ID)
	})
	if err != nil {
		return m.finish(err)
	}

	invalidateSummaries(ctx, uc.cache, zerolog.Ctx(ctx), ownerID, recordID)

	return m.finish(nil)
}
