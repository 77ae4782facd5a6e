package handler

import (
	"context"
	"net/http"

	"github.com/iho/stockledger/internal/adapter/http/dto"
	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

// RecordService defines the behavior needed by RecordHandler.
type RecordService interface {
	CreateRecord(ctx context.Context, input usecase.CreateRecordInput) (*domain.Record, error)
	GetRecord(ctx context.Context, ownerID, recordID int64) (*domain.Record, error)
	ListRecords(ctx context.Context, ownerID int64, page, pageSize int) (*usecase.RecordPage, error)
	DeleteRecord(ctx context.Context, ownerID, recordID int64) error
}

// RecordHandler handles record-related HTTP requests.
type RecordHandler struct {
	recordUC RecordService
}

// NewRecordHandler creates a new RecordHandler.
func NewRecordHandler(recordUC RecordService) *RecordHandler {
	return &RecordHandler{recordUC: recordUC}
}

// Create creates a record and its opening entry.
func (h *RecordHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	var req dto.CreateRecordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input, err := req.ToUseCaseInput(owner)
	if err != nil {
		writeError(w, r, err)
		return
	}

	record, err := h.recordUC.CreateRecord(r.Context(), input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.RecordFromDomain(record))
}

// Get retrieves a record by ID.
func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	record, err := h.recordUC.GetRecord(r.Context(), owner, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RecordFromDomain(record))
}

// List lists the owner's records.
func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	page, err := h.recordUC.ListRecords(r.Context(), owner,
		parseIntQuery(r, "page", 1),
		parseIntQuery(r, "page_size", domain.DefaultPageSize),
	)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RecordPageFromUseCase(page))
}

// Delete removes a record with its whole ledger.
func (h *RecordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.recordUC.DeleteRecord(r.Context(), owner, id); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
