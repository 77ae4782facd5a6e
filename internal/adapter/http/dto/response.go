package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

// RecordResponse represents a record in API responses.
type RecordResponse struct {
	ID             int64               `json:"id"`
	Code           string              `json:"code"`
	CurrentBalance decimal.Decimal     `json:"current_balance"`
	Status         domain.RecordStatus `json:"status"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// RecordFromDomain converts a domain record to a response.
func RecordFromDomain(r *domain.Record) *RecordResponse {
	return &RecordResponse{
		ID:             r.ID,
		Code:           r.Code,
		CurrentBalance: r.CurrentBalance,
		Status:         r.Status,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// ListRecordsResponse is one page of records.
type ListRecordsResponse struct {
	Records    []*RecordResponse `json:"records"`
	Pagination domain.Pagination `json:"pagination"`
}

// RecordPageFromUseCase converts a use case page to a response.
func RecordPageFromUseCase(page *usecase.RecordPage) *ListRecordsResponse {
	records := make([]*RecordResponse, len(page.Records))
	for i, r := range page.Records {
		records[i] = RecordFromDomain(r)
	}
	return &ListRecordsResponse{Records: records, Pagination: page.Pagination}
}

// EntryResponse represents an entry in API responses.
type EntryResponse struct {
	ID          int64           `json:"id"`
	RecordID    int64           `json:"record_id"`
	EntryDate   string          `json:"entry_date"`
	QuantityIn  decimal.Decimal `json:"quantity_in"`
	QuantityOut decimal.Decimal `json:"quantity_out"`
	Balance     decimal.Decimal `json:"balance"`
	Remarks     string          `json:"remarks"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// EntryFromDomain converts a domain entry to a response.
func EntryFromDomain(e *domain.Entry) *EntryResponse {
	return &EntryResponse{
		ID:          e.ID,
		RecordID:    e.RecordID,
		EntryDate:   e.EntryDate.Format(domain.DateLayout),
		QuantityIn:  e.QuantityIn,
		QuantityOut: e.QuantityOut,
		Balance:     e.Balance,
		Remarks:     e.Remarks,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

// ListEntriesResponse is one page of a record's history, most recent first.
type ListEntriesResponse struct {
	Entries    []*EntryResponse  `json:"entries"`
	Pagination domain.Pagination `json:"pagination"`
}

// EntryPageFromUseCase converts a use case page to a response.
func EntryPageFromUseCase(page *usecase.EntryPage) *ListEntriesResponse {
	entries := make([]*EntryResponse, len(page.Entries))
	for i, e := range page.Entries {
		entries[i] = EntryFromDomain(e)
	}
	return &ListEntriesResponse{Entries: entries, Pagination: page.Pagination}
}

// BalanceResponse carries the latest balance of a record.
type BalanceResponse struct {
	RecordID int64               `json:"record_id"`
	Balance  decimal.Decimal     `json:"balance"`
	Status   domain.RecordStatus `json:"status"`
}

// MismatchResponse is one stored balance that disagrees with a recompute.
type MismatchResponse struct {
	EntryID  int64           `json:"entry_id"`
	Stored   decimal.Decimal `json:"stored"`
	Expected decimal.Decimal `json:"expected"`
}

// ReconciliationResponse reports a reconciliation check or repair.
type ReconciliationResponse struct {
	RecordID          int64               `json:"record_id"`
	IsReconciled      bool                `json:"is_reconciled"`
	RecordedBalance   decimal.Decimal     `json:"recorded_balance"`
	CalculatedBalance decimal.Decimal     `json:"calculated_balance"`
	Difference        decimal.Decimal     `json:"difference"`
	RecordedStatus    domain.RecordStatus `json:"recorded_status"`
	EntryCount        int                 `json:"entry_count"`
	Mismatches        []MismatchResponse  `json:"mismatches"`
	Repaired          int                 `json:"repaired"`
	LastChecked       time.Time           `json:"last_checked"`
}

// ReconciliationFromUseCase converts a use case result to a response.
func ReconciliationFromUseCase(r *usecase.ReconciliationResult) *ReconciliationResponse {
	mismatches := make([]MismatchResponse, len(r.Mismatches))
	for i, m := range r.Mismatches {
		mismatches[i] = MismatchResponse{EntryID: m.EntryID, Stored: m.Stored, Expected: m.Expected}
	}

	return &ReconciliationResponse{
		RecordID:          r.RecordID,
		IsReconciled:      r.IsReconciled,
		RecordedBalance:   r.RecordedBalance,
		CalculatedBalance: r.CalculatedBalance,
		Difference:        r.Difference,
		RecordedStatus:    r.RecordedStatus,
		EntryCount:        r.EntryCount,
		Mismatches:        mismatches,
		Repaired:          r.Repaired,
		LastChecked:       r.LastChecked,
	}
}

// ReconciliationReportResponse summarizes reconciliation across an owner.
type ReconciliationReportResponse struct {
	CheckedAt         time.Time                 `json:"checked_at"`
	TotalRecords      int                       `json:"total_records"`
	ReconciledRecords int                       `json:"reconciled_records"`
	MismatchedEntries int                       `json:"mismatched_entries"`
	Discrepancies     []*ReconciliationResponse `json:"discrepancies"`
}

// ReportFromUseCase converts a use case report to a response.
func ReportFromUseCase(r *usecase.ReconciliationReport) *ReconciliationReportResponse {
	discrepancies := make([]*ReconciliationResponse, len(r.Discrepancies))
	for i, d := range r.Discrepancies {
		discrepancies[i] = ReconciliationFromUseCase(d)
	}

	return &ReconciliationReportResponse{
		CheckedAt:         r.CheckedAt,
		TotalRecords:      r.TotalRecords,
		ReconciledRecords: r.ReconciledRecords,
		MismatchedEntries: r.MismatchedEntries,
		Discrepancies:     discrepancies,
	}
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Retryable bool   `json:"retryable"`
}
