package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/stockledger/internal/domain"
)

// Projector writes a record's aggregate from its ledger. It only runs inside
// the transaction of the mutation that changed the ledger.
type Projector struct {
	recordRepo RecordRepository
	entryRepo  EntryRepository
}

// NewProjector creates a new Projector.
func NewProjector(recordRepo RecordRepository, entryRepo EntryRepository) *Projector {
	return &Projector{
		recordRepo: recordRepo,
		entryRepo:  entryRepo,
	}
}

// Project reads the balance of the chronologically last entry (zero when the
// ledger is empty) and stores it with the derived status on the record.
func (p *Projector) Project(ctx context.Context, tx Transaction, recordID int64, now time.Time) (decimal.Decimal, domain.RecordStatus, error) {
	balance, err := p.entryRepo.LatestBalanceTx(ctx, tx, recordID)
	if err != nil {
		return decimal.Zero, "", err
	}

	status := domain.StatusFor(balance)

	if err := p.recordRepo.UpdateAggregate(ctx, tx, recordID, balance, status, now); err != nil {
		return decimal.Zero, "", err
	}

	return balance, status, nil
}
