package domain

import "github.com/shopspring/decimal"

// RecordTotals aggregates the ledger of a single record.
type RecordTotals struct {
	TotalIn        decimal.Decimal `json:"total_in"`
	TotalOut       decimal.Decimal `json:"total_out"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	EntryCount     int64           `json:"entry_count"`
}

// RecordSummary is one row of an owner's stock summary.
type RecordSummary struct {
	Code   string       `json:"code"`
	Status RecordStatus `json:"status"`
	RecordTotals
	RecordID int64 `json:"record_id"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPagination computes page metadata for a total row count.
func NewPagination(total int64, page, pageSize int) Pagination {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}

	return Pagination{
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
