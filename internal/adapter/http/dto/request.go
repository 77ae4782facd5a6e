package dto

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

// CreateRecordRequest represents a request to create a record.
type CreateRecordRequest struct {
	Code           string           `json:"code"`
	OpeningBalance *decimal.Decimal `json:"opening_balance,omitempty"`
	OpeningDate    string           `json:"opening_date,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateRecordRequest) ToUseCaseInput(ownerID int64) (usecase.CreateRecordInput, error) {
	input := usecase.CreateRecordInput{
		OwnerID: ownerID,
		Code:    r.Code,
	}

	if r.OpeningBalance != nil {
		input.OpeningQuantity = *r.OpeningBalance
	}

	if r.OpeningDate != "" {
		date, err := domain.ParseDate(r.OpeningDate)
		if err != nil {
			return input, fmt.Errorf("opening_date: %w", err)
		}
		input.OpeningDate = date
	}

	return input, nil
}

// EntryRequest represents a request to create or update an entry. Omitted
// quantities are zero.
type EntryRequest struct {
	EntryDate   string           `json:"entry_date"`
	QuantityIn  *decimal.Decimal `json:"quantity_in,omitempty"`
	QuantityOut *decimal.Decimal `json:"quantity_out,omitempty"`
	Remarks     string           `json:"remarks"`
}

// ToUseCaseInput converts to use case input.
func (r *EntryRequest) ToUseCaseInput() (usecase.EntryInput, error) {
	date, err := domain.ParseDate(r.EntryDate)
	if err != nil {
		return usecase.EntryInput{}, err
	}

	input := usecase.EntryInput{
		EntryDate: date,
		Remarks:   r.Remarks,
	}
	if r.QuantityIn != nil {
		input.QuantityIn = *r.QuantityIn
	}
	if r.QuantityOut != nil {
		input.QuantityOut = *r.QuantityOut
	}

	return input, nil
}
