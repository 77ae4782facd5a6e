package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/stockledger/internal/adapter/http/dto"
	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

type reconciliationServiceStub struct {
	repaired bool
}

func (s *reconciliationServiceStub) ReconcileRecord(ctx context.Context, ownerID, recordID int64) (*usecase.ReconciliationResult, error) {
	return &usecase.ReconciliationResult{
		RecordID:   recordID,
		EntryCount: 2,
		Mismatches: []domain.BalanceMismatch{{EntryID: 9, Stored: decimal.NewFromInt(3), Expected: decimal.NewFromInt(1)}},
	}, nil
}

func (s *reconciliationServiceStub) RepairRecord(ctx context.Context, ownerID, recordID int64) (*usecase.ReconciliationResult, error) {
	s.repaired = true
	return &usecase.ReconciliationResult{RecordID: recordID, IsReconciled: true, Repaired: 1}, nil
}

func (s *reconciliationServiceStub) GenerateReconciliationReport(ctx context.Context, ownerID int64) (*usecase.ReconciliationReport, error) {
	return &usecase.ReconciliationReport{CheckedAt: time.Now(), TotalRecords: 3, ReconciledRecords: 3}, nil
}

type summaryServiceStub struct{}

func (summaryServiceStub) RecordSummary(ctx context.Context, ownerID, recordID int64) (*domain.RecordSummary, error) {
	return nil, domain.ErrNotFound
}

func (summaryServiceStub) OwnerSummary(ctx context.Context, ownerID int64) ([]*domain.RecordSummary, error) {
	return []*domain.RecordSummary{{RecordID: 1, Code: "A", Status: domain.StatusInStock}}, nil
}

func TestReconciliationHandler(t *testing.T) {
	stub := &reconciliationServiceStub{}
	h := NewReconciliationHandler(stub)

	rec := serve(http.MethodGet, "/records/{id}/reconciliation", "/records/4/reconciliation", h.Check, nil, 7)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var check dto.ReconciliationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &check); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if check.IsReconciled || len(check.Mismatches) != 1 || check.Mismatches[0].EntryID != 9 {
		t.Fatalf("unexpected check %+v", check)
	}
	if stub.repaired {
		t.Fatalf("check must not repair")
	}

	rec = serve(http.MethodPost, "/records/{id}/reconciliation", "/records/4/reconciliation", h.Repair, nil, 7)
	var repair dto.ReconciliationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &repair); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !stub.repaired || repair.Repaired != 1 || repair.Mismatches == nil {
		t.Fatalf("unexpected repair %+v", repair)
	}

	rec = serve(http.MethodGet, "/reconciliation", "/reconciliation", h.Report, nil, 7)
	var report dto.ReconciliationReportResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if report.TotalRecords != 3 || report.Discrepancies == nil {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestSummaryHandler(t *testing.T) {
	h := NewSummaryHandler(summaryServiceStub{})

	rec := serve(http.MethodGet, "/records/{id}/summary", "/records/4/summary", h.Record, nil, 7)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = serve(http.MethodGet, "/summary", "/summary", h.Owner, nil, 7)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Records []domain.RecordSummary `json:"records"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Records) != 1 || body.Records[0].Code != "A" {
		t.Fatalf("unexpected summary %+v", body)
	}
}

func TestHealthHandler(t *testing.T) {
	ok := PingerFunc(func(context.Context) error { return nil })
	down := PingerFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name     string
		postgres Pinger
		redis    Pinger
		want     int
	}{
		{"all up", ok, ok, http.StatusOK},
		{"no redis configured", ok, nil, http.StatusOK},
		{"postgres down", down, ok, http.StatusServiceUnavailable},
		{"redis down", ok, down, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.postgres, tt.redis)

			rec := serve(http.MethodGet, "/ready", "/ready", h.Readiness, nil, 0)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}

	rec := serve(http.MethodGet, "/health", "/health", NewHealthHandler(down, down).Liveness, nil, 0)
	if rec.Code != http.StatusOK {
		t.Fatalf("liveness must not depend on backends, got %d", rec.Code)
	}
}
