package handler

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/iho/stockledger/internal/adapter/http/dto"
	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

// LedgerService defines the behavior needed by EntryHandler.
type LedgerService interface {
	CreateEntry(ctx context.Context, ownerID, recordID int64, input usecase.EntryInput) (*domain.Entry, error)
	UpdateEntry(ctx context.Context, ownerID, entryID int64, input usecase.EntryInput) (*domain.Entry, error)
	DeleteEntry(ctx context.Context, ownerID, entryID int64) error
	GetEntry(ctx context.Context, ownerID, entryID int64) (*domain.Entry, error)
	ListEntries(ctx context.Context, input usecase.ListEntriesInput) (*usecase.EntryPage, error)
	LatestBalance(ctx context.Context, ownerID, recordID int64) (decimal.Decimal, error)
}

// EntryHandler handles stock movement requests.
type EntryHandler struct {
	ledgerUC LedgerService
}

// NewEntryHandler creates a new EntryHandler.
func NewEntryHandler(ledgerUC LedgerService) *EntryHandler {
	return &EntryHandler{ledgerUC: ledgerUC}
}

// Create records a movement on the record named in the path.
func (h *EntryHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	recordID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	input, ok := decodeEntry(w, r)
	if !ok {
		return
	}

	entry, err := h.ledgerUC.CreateEntry(r.Context(), owner, recordID, input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.EntryFromDomain(entry))
}

// Update edits an entry and cascades the new balances.
func (h *EntryHandler) Update(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	entryID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	input, ok := decodeEntry(w, r)
	if !ok {
		return
	}

	entry, err := h.ledgerUC.UpdateEntry(r.Context(), owner, entryID, input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntryFromDomain(entry))
}

// Delete removes an entry.
func (h *EntryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	entryID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.ledgerUC.DeleteEntry(r.Context(), owner, entryID); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Get retrieves a single entry.
func (h *EntryHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	entryID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	entry, err := h.ledgerUC.GetEntry(r.Context(), owner, entryID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntryFromDomain(entry))
}

// ListByRecord returns a page of a record's history, most recent first.
func (h *EntryHandler) ListByRecord(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	recordID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	page, err := h.ledgerUC.ListEntries(r.Context(), usecase.ListEntriesInput{
		OwnerID:  owner,
		RecordID: recordID,
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", domain.DefaultPageSize),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntryPageFromUseCase(page))
}

// Balance returns the latest balance of a record.
func (h *EntryHandler) Balance(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	recordID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	balance, err := h.ledgerUC.LatestBalance(r.Context(), owner, recordID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceResponse{
		RecordID: recordID,
		Balance:  balance,
		Status:   domain.StatusFor(balance),
	})
}

func decodeEntry(w http.ResponseWriter, r *http.Request) (usecase.EntryInput, bool) {
	var req dto.EntryRequest
	if !decodeJSON(w, r, &req) {
		return usecase.EntryInput{}, false
	}

	input, err := req.ToUseCaseInput()
	if err != nil {
		writeError(w, r, err)
		return usecase.EntryInput{}, false
	}
	return input, true
}
