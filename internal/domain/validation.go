package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Validation constants
const (
	MaxQuantity         = "999999999999.99" // NUMERIC(14,2)
	QuantityScale       = 2
	MaxRemarksLength    = 255
	MaxRecordCodeLength = 50
	DefaultPageSize     = 20
	MaxPageSize         = 100
	DateLayout          = "2006-01-02"
)

var maxQuantity = decimal.RequireFromString(MaxQuantity)

// ParseQuantity parses a user-supplied quantity. An empty string is zero.
func ParseQuantity(field, s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s must be a number", ErrValidation, field)
	}

	return d, nil
}

// ParseDate parses a YYYY-MM-DD entry date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: entry date is required", ErrValidation)
	}

	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: entry date must use %s", ErrValidation, DateLayout)
	}

	return t, nil
}

// ValidateQuantity checks a single movement magnitude.
func ValidateQuantity(field string, q decimal.Decimal) error {
	if q.IsNegative() {
		return fmt.Errorf("%w: %s cannot be negative", ErrValidation, field)
	}

	if !q.Equal(q.Round(QuantityScale)) {
		return fmt.Errorf("%w: %s allows at most %d decimal places", ErrValidation, field, QuantityScale)
	}

	if q.GreaterThan(maxQuantity) {
		return fmt.Errorf("%w: %s exceeds %s", ErrValidation, field, MaxQuantity)
	}

	return nil
}

// ValidateMovement checks the user-editable fields of an entry.
func ValidateMovement(entryDate time.Time, in, out decimal.Decimal, remarks string) error {
	if entryDate.IsZero() {
		return fmt.Errorf("%w: entry date is required", ErrValidation)
	}

	if err := ValidateQuantity("quantity in", in); err != nil {
		return err
	}

	if err := ValidateQuantity("quantity out", out); err != nil {
		return err
	}

	if in.IsZero() && out.IsZero() {
		return fmt.Errorf("%w: quantity in or quantity out must be greater than zero", ErrValidation)
	}

	if utf8.RuneCountInString(remarks) > MaxRemarksLength {
		return fmt.Errorf("%w: remarks exceed %d characters", ErrValidation, MaxRemarksLength)
	}

	return nil
}

// ValidateRecordCode validates the code of a new record.
func ValidateRecordCode(code string) error {
	code = strings.TrimSpace(code)

	if code == "" {
		return fmt.Errorf("%w: code cannot be empty", ErrValidation)
	}

	if utf8.RuneCountInString(code) > MaxRecordCodeLength {
		return fmt.Errorf("%w: code exceeds %d characters", ErrValidation, MaxRecordCodeLength)
	}

	return nil
}

// ValidatePagination normalizes 1-based page parameters. Pages whose row
// offset does not fit the int32 OFFSET of the store are rejected.
func ValidatePagination(page, pageSize int) (int, int, error) {
	if page < 1 {
		page = 1
	}

	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	if maxPage := math.MaxInt32/pageSize + 1; page > maxPage {
		return 0, 0, fmt.Errorf("%w: page must not exceed %d", ErrValidation, maxPage)
	}

	return page, pageSize, nil
}
