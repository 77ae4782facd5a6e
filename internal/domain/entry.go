package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OpeningBalanceRemarks marks the entry seeded when a record is created with stock.
const OpeningBalanceRemarks = "opening balance"

// Entry is a single stock movement on a record with its materialized balance.
type Entry struct {
	EntryDate   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	QuantityIn  decimal.Decimal
	QuantityOut decimal.Decimal
	Balance     decimal.Decimal
	Remarks     string
	ID          int64
	RecordID    int64
}

// Net returns the signed effect of the entry on the running balance.
func (e *Entry) Net() decimal.Decimal {
	return e.QuantityIn.Sub(e.QuantityOut)
}

// Kind reports which side of the movement is active.
func (e *Entry) Kind() MovementKind {
	switch {
	case e.QuantityIn.IsPositive() && e.QuantityOut.IsPositive():
		return MovementCompound
	case e.QuantityOut.IsPositive():
		return MovementOutflow
	default:
		return MovementInflow
	}
}

// Clone returns a shallow copy safe to mutate.
func (e *Entry) Clone() *Entry {
	c := *e
	return &c
}

// MovementKind classifies an entry by its active side.
type MovementKind string

const (
	MovementInflow   MovementKind = "inflow"
	MovementOutflow  MovementKind = "outflow"
	MovementCompound MovementKind = "compound"
)

// NormalizeDate truncates t to a UTC calendar date.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
