package handler

import (
	"context"
	"net/http"

	"github.com/iho/stockledger/internal/adapter/http/dto"
	"github.com/iho/stockledger/internal/usecase"
)

// ReconciliationService defines the behavior needed by ReconciliationHandler.
type ReconciliationService interface {
	ReconcileRecord(ctx context.Context, ownerID, recordID int64) (*usecase.ReconciliationResult, error)
	RepairRecord(ctx context.Context, ownerID, recordID int64) (*usecase.ReconciliationResult, error)
	GenerateReconciliationReport(ctx context.Context, ownerID int64) (*usecase.ReconciliationReport, error)
}

// ReconciliationHandler verifies and repairs stored balances.
type ReconciliationHandler struct {
	reconciliationUC ReconciliationService
}

// NewReconciliationHandler creates a new ReconciliationHandler.
func NewReconciliationHandler(reconciliationUC ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{reconciliationUC: reconciliationUC}
}

// Check compares stored balances of a record against a recompute.
func (h *ReconciliationHandler) Check(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.reconciliationUC.ReconcileRecord)
}

// Repair rewrites the stored balances of a record from a recompute.
func (h *ReconciliationHandler) Repair(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.reconciliationUC.RepairRecord)
}

// Report checks every record of the owner.
func (h *ReconciliationHandler) Report(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	report, err := h.reconciliationUC.GenerateReconciliationReport(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReportFromUseCase(report))
}

func (h *ReconciliationHandler) serve(
	w http.ResponseWriter,
	r *http.Request,
	run func(ctx context.Context, ownerID, recordID int64) (*usecase.ReconciliationResult, error),
) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	recordID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	result, err := run(r.Context(), owner, recordID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReconciliationFromUseCase(result))
}
