package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/stockledger/internal/domain"
)

// ReconciliationUseCase checks stored balances and record projections
// against a recomputation of the ledger, and repairs them on request.
type ReconciliationUseCase struct {
	txManager  TransactionManager
	recordRepo RecordRepository
	entryRepo  EntryRepository
	cascader   *Cascader
	projector  *Projector
	cache      Cache
	metrics    MetricsRecorder
	txTimeout  time.Duration
}

// NewReconciliationUseCase creates a new reconciliation use case.
func NewReconciliationUseCase(
	txManager TransactionManager,
	recordRepo RecordRepository,
	entryRepo EntryRepository,
	cache Cache,
	metrics MetricsRecorder,
) *ReconciliationUseCase {
	if metrics == nil {
		metrics = nopMetrics{}
	}

	return &ReconciliationUseCase{
		txManager:  txManager,
		recordRepo: recordRepo,
		entryRepo:  entryRepo,
		cascader:   NewCascader(recordRepo, entryRepo, domain.CascadePermissive),
		projector:  NewProjector(recordRepo, entryRepo),
		cache:      cache,
		metrics:    metrics,
		txTimeout:  DefaultTransactionTimeout,
	}
}

// SetTransactionTimeout bounds each write transaction. Non-positive values
// keep the current bound.
func (uc *ReconciliationUseCase) SetTransactionTimeout(d time.Duration) {
	if d > 0 {
		uc.txTimeout = d
	}
}

// ReconciliationResult represents the result of a reconciliation check.
type ReconciliationResult struct {
	LastChecked       time.Time
	RecordedBalance   decimal.Decimal
	CalculatedBalance decimal.Decimal
	Difference        decimal.Decimal
	RecordedStatus    domain.RecordStatus
	Mismatches        []domain.BalanceMismatch
	RecordID          int64
	EntryCount        int
	Repaired          int
	IsReconciled      bool
}

// ReconcileRecord recomputes a record's ledger from zero and reports every
// stored balance and projected field that disagrees. It writes nothing.
func (uc *ReconciliationUseCase) ReconcileRecord(ctx context.Context, ownerID, recordID int64) (*ReconciliationResult, error) {
	record, err := uc.recordRepo.GetByID(ctx, ownerID, recordID)
	if err != nil {
		return nil, err
	}

	entries, err := uc.entryRepo.ListCanonical(ctx, record.ID)
	if err != nil {
		return nil, err
	}

	domain.SortCanonical(entries)

	return buildResult(record, entries, domain.Verify(entries)), nil
}

// RepairRecord rewrites every stale balance of a record and re-projects it in
// one transaction. The returned result describes the state before repair.
func (uc *ReconciliationUseCase) RepairRecord(ctx context.Context, ownerID, recordID int64) (*ReconciliationResult, error) {
	m := startMutation(ctx, uc.metrics, domain.OpRepairRecord)

	before, err := uc.ReconcileRecord(ctx, ownerID, recordID)
	if err != nil {
		return nil, m.finish(err)
	}

	var repaired int

	err = inTx(ctx, uc.txManager, uc.txTimeout, m, func(ctx context.Context, tx Transaction) error {
		now := time.Now().UTC()

		mismatches, err := uc.cascader.Rebuild(ctx, tx, m, ownerID, recordID, now)
		if err != nil {
			return err
		}
		repaired = len(mismatches)

		m.advance(domain.StateProjecting)

		_, _, err = uc.projector.Project(ctx, tx, recordID, now)
		return err
	})
	if err != nil {
		return nil, m.finish(err)
	}

	uc.metrics.ObserveCascade(domain.OpRepairRecord, repaired)
	invalidateSummaries(ctx, uc.cache, zerolog.Ctx(ctx), ownerID, recordID)

	before.Repaired = repaired

	return before, m.finish(nil)
}

// ReconciliationReport summarizes reconciliation across all records of an owner.
type ReconciliationReport struct {
	CheckedAt         time.Time
	Discrepancies     []*ReconciliationResult
	TotalRecords      int
	ReconciledRecords int
	MismatchedEntries int
}

// GenerateReconciliationReport reconciles every record of the owner.
func (uc *ReconciliationUseCase) GenerateReconciliationReport(ctx context.Context, ownerID int64) (*ReconciliationReport, error) {
	report := &ReconciliationReport{
		Discrepancies: make([]*ReconciliationResult, 0),
		CheckedAt:     time.Now().UTC(),
	}

	for offset := 0; ; offset += reconcileBatchSize {
		records, err := uc.recordRepo.List(ctx, ownerID, reconcileBatchSize, offset)
		if err != nil {
			return nil, err
		}

		for _, record := range records {
			result, err := uc.ReconcileRecord(ctx, ownerID, record.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to reconcile record %d: %w", record.ID, err)
			}

			report.TotalRecords++
			report.MismatchedEntries += len(result.Mismatches)

			if result.IsReconciled {
				report.ReconciledRecords++
			} else {
				report.Discrepancies = append(report.Discrepancies, result)
			}
		}

		if len(records) < reconcileBatchSize {
			break
		}
	}

	return report, nil
}

func buildResult(record *domain.Record, ordered []*domain.Entry, mismatches []domain.BalanceMismatch) *ReconciliationResult {
	calculated := decimal.Zero
	if n := len(ordered); n > 0 {
		calculated = domain.Recompute(decimal.Zero, ordered)[n-1]
	}

	difference := record.CurrentBalance.Sub(calculated)

	return &ReconciliationResult{
		RecordID:          record.ID,
		RecordedBalance:   record.CurrentBalance,
		RecordedStatus:    record.Status,
		CalculatedBalance: calculated,
		Difference:        difference,
		Mismatches:        mismatches,
		EntryCount:        len(ordered),
		IsReconciled:      len(mismatches) == 0 && difference.IsZero() && record.Status == domain.StatusFor(calculated),
		LastChecked:       time.Now().UTC(),
	}
}
