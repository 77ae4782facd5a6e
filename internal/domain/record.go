package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordStatus is the derived stock state of a record.
type RecordStatus string

const (
	StatusInStock  RecordStatus = "in_stock"
	StatusDepleted RecordStatus = "depleted"
)

// Record is a stock item owned by a tenant. CurrentBalance and Status are a
// projection of the record's ledger and are only written by the projector.
type Record struct {
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CurrentBalance decimal.Decimal
	Code           string
	Status         RecordStatus
	ID             int64
	OwnerID        int64
}

// StatusFor derives the record status from a balance.
func StatusFor(balance decimal.Decimal) RecordStatus {
	if balance.IsPositive() {
		return StatusInStock
	}
	return StatusDepleted
}

// IsValid reports whether s is a known status.
func (s RecordStatus) IsValid() bool {
	return s == StatusInStock || s == StatusDepleted
}
