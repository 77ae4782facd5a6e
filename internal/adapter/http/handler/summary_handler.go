package handler

import (
	"context"
	"net/http"

	"github.com/iho/stockledger/internal/domain"
)

// SummaryService defines the behavior needed by SummaryHandler.
type SummaryService interface {
	RecordSummary(ctx context.Context, ownerID, recordID int64) (*domain.RecordSummary, error)
	OwnerSummary(ctx context.Context, ownerID int64) ([]*domain.RecordSummary, error)
}

// SummaryHandler serves stock summaries.
type SummaryHandler struct {
	summaryUC SummaryService
}

// NewSummaryHandler creates a new SummaryHandler.
func NewSummaryHandler(summaryUC SummaryService) *SummaryHandler {
	return &SummaryHandler{summaryUC: summaryUC}
}

// Record returns the totals of one record.
func (h *SummaryHandler) Record(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	recordID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	summary, err := h.summaryUC.RecordSummary(r.Context(), owner, recordID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// Owner returns one summary row per record of the owner.
func (h *SummaryHandler) Owner(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	summaries, err := h.summaryUC.OwnerSummary(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"records": summaries})
}
