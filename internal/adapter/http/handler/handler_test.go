package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/stockledger/internal/adapter/http/dto"
	"github.com/iho/stockledger/internal/adapter/http/middleware"
	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

type recordServiceStub struct {
	createFn func(ctx context.Context, input usecase.CreateRecordInput) (*domain.Record, error)
	getFn    func(ctx context.Context, ownerID, recordID int64) (*domain.Record, error)
	listFn   func(ctx context.Context, ownerID int64, page, pageSize int) (*usecase.RecordPage, error)
	deleteFn func(ctx context.Context, ownerID, recordID int64) error
}

func (s *recordServiceStub) CreateRecord(ctx context.Context, input usecase.CreateRecordInput) (*domain.Record, error) {
	return s.createFn(ctx, input)
}

func (s *recordServiceStub) GetRecord(ctx context.Context, ownerID, recordID int64) (*domain.Record, error) {
	return s.getFn(ctx, ownerID, recordID)
}

func (s *recordServiceStub) ListRecords(ctx context.Context, ownerID int64, page, pageSize int) (*usecase.RecordPage, error) {
	return s.listFn(ctx, ownerID, page, pageSize)
}

func (s *recordServiceStub) DeleteRecord(ctx context.Context, ownerID, recordID int64) error {
	return s.deleteFn(ctx, ownerID, recordID)
}

type ledgerServiceStub struct {
	createFn  func(ctx context.Context, ownerID, recordID int64, input usecase.EntryInput) (*domain.Entry, error)
	updateFn  func(ctx context.Context, ownerID, entryID int64, input usecase.EntryInput) (*domain.Entry, error)
	deleteFn  func(ctx context.Context, ownerID, entryID int64) error
	getFn     func(ctx context.Context, ownerID, entryID int64) (*domain.Entry, error)
	listFn    func(ctx context.Context, input usecase.ListEntriesInput) (*usecase.EntryPage, error)
	balanceFn func(ctx context.Context, ownerID, recordID int64) (decimal.Decimal, error)
}

func (s *ledgerServiceStub) CreateEntry(ctx context.Context, ownerID, recordID int64, input usecase.EntryInput) (*domain.Entry, error) {
	return s.createFn(ctx, ownerID, recordID, input)
}

func (s *ledgerServiceStub) UpdateEntry(ctx context.Context, ownerID, entryID int64, input usecase.EntryInput) (*domain.Entry, error) {
	return s.updateFn(ctx, ownerID, entryID, input)
}

func (s *ledgerServiceStub) DeleteEntry(ctx context.Context, ownerID, entryID int64) error {
	return s.deleteFn(ctx, ownerID, entryID)
}

func (s *ledgerServiceStub) GetEntry(ctx context.Context, ownerID, entryID int64) (*domain.Entry, error) {
	return s.getFn(ctx, ownerID, entryID)
}

func (s *ledgerServiceStub) ListEntries(ctx context.Context, input usecase.ListEntriesInput) (*usecase.EntryPage, error) {
	return s.listFn(ctx, input)
}

func (s *ledgerServiceStub) LatestBalance(ctx context.Context, ownerID, recordID int64) (decimal.Decimal, error) {
	return s.balanceFn(ctx, ownerID, recordID)
}

// serve routes a single request through a chi router so URL params resolve.
func serve(method, pattern, target string, h http.HandlerFunc, body any, owner int64) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}

	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)

	req := httptest.NewRequest(method, target, reader)
	if owner > 0 {
		req = req.WithContext(middleware.WithOwnerID(req.Context(), owner))
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()

	var resp dto.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error body %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestRecordHandler_Create_Success(t *testing.T) {
	var captured usecase.CreateRecordInput
	h := NewRecordHandler(&recordServiceStub{
		createFn: func(ctx context.Context, input usecase.CreateRecordInput) (*domain.Record, error) {
			captured = input
			return &domain.Record{ID: 5, OwnerID: input.OwnerID, Code: input.Code, CurrentBalance: input.OpeningQuantity, Status: domain.StatusInStock}, nil
		},
	})

	rec := serve(http.MethodPost, "/records", "/records", h.Create,
		`{"code":"COIL-1","opening_balance":"12.50","opening_date":"2024-03-01"}`, 7)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	if captured.OwnerID != 7 || captured.Code != "COIL-1" || !captured.OpeningQuantity.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected input %+v", captured)
	}
	if !captured.OpeningDate.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected opening date %v", captured.OpeningDate)
	}

	var resp dto.RecordResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != 5 || resp.Status != domain.StatusInStock {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestRecordHandler_Create_InvalidBody(t *testing.T) {
	h := NewRecordHandler(&recordServiceStub{})

	rec := serve(http.MethodPost, "/records", "/records", h.Create, `{"code":`, 7)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = serve(http.MethodPost, "/records", "/records", h.Create, `{"code":"A","colour":"red"}`, 7)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}

	rec = serve(http.MethodPost, "/records", "/records", h.Create, `{"code":"A","opening_date":"01/03/2024"}`, 7)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rec.Code)
	}
}

func TestRecordHandler_RequiresOwner(t *testing.T) {
	h := NewRecordHandler(&recordServiceStub{})

	rec := serve(http.MethodGet, "/records", "/records", h.List, nil, 0)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRecordHandler_GetNotFound(t *testing.T) {
	h := NewRecordHandler(&recordServiceStub{
		getFn: func(ctx context.Context, ownerID, recordID int64) (*domain.Record, error) {
			if ownerID != 7 || recordID != 3 {
				t.Fatalf("unexpected ids %d/%d", ownerID, recordID)
			}
			return nil, domain.ErrNotFound
		},
	})

	rec := serve(http.MethodGet, "/records/{id}", "/records/3", h.Get, nil, 7)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	resp := decodeError(t, rec)
	if resp.Error != "not_found" || resp.Retryable {
		t.Fatalf("unexpected error body %+v", resp)
	}
}

func TestRecordHandler_InvalidID(t *testing.T) {
	h := NewRecordHandler(&recordServiceStub{})

	for _, id := range []string{"abc", "0", "-4"} {
		rec := serve(http.MethodGet, "/records/{id}", "/records/"+id, h.Get, nil, 7)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("id %q: expected 400, got %d", id, rec.Code)
		}
	}
}

func TestRecordHandler_ListPagination(t *testing.T) {
	h := NewRecordHandler(&recordServiceStub{
		listFn: func(ctx context.Context, ownerID int64, page, pageSize int) (*usecase.RecordPage, error) {
			if page != 2 || pageSize != 5 {
				t.Fatalf("unexpected paging %d/%d", page, pageSize)
			}
			return &usecase.RecordPage{
				Records:    []*domain.Record{{ID: 1, Code: "A"}},
				Pagination: domain.NewPagination(6, page, pageSize),
			}, nil
		},
	})

	rec := serve(http.MethodGet, "/records", "/records?page=2&page_size=5", h.List, nil, 7)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp dto.ListRecordsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Records) != 1 || resp.Pagination.TotalPages != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestRecordHandler_Delete(t *testing.T) {
	h := NewRecordHandler(&recordServiceStub{
		deleteFn: func(ctx context.Context, ownerID, recordID int64) error { return nil },
	})

	rec := serve(http.MethodDelete, "/records/{id}", "/records/3", h.Delete, nil, 7)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestEntryHandler_Create(t *testing.T) {
	var captured usecase.EntryInput
	h := NewEntryHandler(&ledgerServiceStub{
		createFn: func(ctx context.Context, ownerID, recordID int64, input usecase.EntryInput) (*domain.Entry, error) {
			captured = input
			return &domain.Entry{
				ID:         11,
				RecordID:   recordID,
				EntryDate:  input.EntryDate,
				QuantityIn: input.QuantityIn,
				Balance:    input.QuantityIn,
				Remarks:    input.Remarks,
			}, nil
		},
	})

	rec := serve(http.MethodPost, "/records/{id}/entries", "/records/3/entries", h.Create,
		`{"entry_date":"2024-03-02","quantity_in":4,"remarks":"delivery"}`, 7)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	if !captured.QuantityIn.Equal(decimal.NewFromInt(4)) || !captured.QuantityOut.IsZero() || captured.Remarks != "delivery" {
		t.Fatalf("unexpected input %+v", captured)
	}

	var resp dto.EntryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.EntryDate != "2024-03-02" || resp.RecordID != 3 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestEntryHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
		retryable  bool
	}{
		{"validation", fmt.Errorf("%w: remarks too long", domain.ErrValidation), http.StatusBadRequest, "validation_error", false},
		{"insufficient", domain.ErrInsufficientBalance, http.StatusUnprocessableEntity, "insufficient_balance", false},
		{"not found", domain.ErrNotFound, http.StatusNotFound, "not_found", false},
		{"contention", domain.ErrContention, http.StatusServiceUnavailable, "contention", true},
		{"persistence", fmt.Errorf("%w: disk full", domain.ErrPersistence), http.StatusInternalServerError, "persistence_failure", true},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal_error", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewEntryHandler(&ledgerServiceStub{
				updateFn: func(ctx context.Context, ownerID, entryID int64, input usecase.EntryInput) (*domain.Entry, error) {
					return nil, tt.err
				},
			})

			rec := serve(http.MethodPut, "/entries/{id}", "/entries/11", h.Update,
				`{"entry_date":"2024-03-02","quantity_out":"2"}`, 7)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}

			resp := decodeError(t, rec)
			if resp.Error != tt.wantKind || resp.Retryable != tt.retryable || resp.Message == "" {
				t.Fatalf("unexpected error body %+v", resp)
			}

			if tt.retryable && tt.wantStatus == http.StatusServiceUnavailable && rec.Header().Get("Retry-After") == "" {
				t.Fatalf("expected Retry-After on contention")
			}
		})
	}
}

func TestEntryHandler_DeleteLastEntry(t *testing.T) {
	h := NewEntryHandler(&ledgerServiceStub{
		deleteFn: func(ctx context.Context, ownerID, entryID int64) error {
			return domain.ErrLastEntryUndeletable
		},
	})

	rec := serve(http.MethodDelete, "/entries/{id}", "/entries/11", h.Delete, nil, 7)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestEntryHandler_MissingDate(t *testing.T) {
	h := NewEntryHandler(&ledgerServiceStub{})

	rec := serve(http.MethodPost, "/records/{id}/entries", "/records/3/entries", h.Create, `{"quantity_in":"1"}`, 7)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestEntryHandler_ListAndBalance(t *testing.T) {
	h := NewEntryHandler(&ledgerServiceStub{
		listFn: func(ctx context.Context, input usecase.ListEntriesInput) (*usecase.EntryPage, error) {
			if input.OwnerID != 7 || input.RecordID != 3 || input.Page != 1 || input.PageSize != domain.DefaultPageSize {
				t.Fatalf("unexpected input %+v", input)
			}
			return &usecase.EntryPage{
				Entries:    []*domain.Entry{{ID: 2, RecordID: 3}, {ID: 1, RecordID: 3}},
				Pagination: domain.NewPagination(2, 1, domain.DefaultPageSize),
			}, nil
		},
		balanceFn: func(ctx context.Context, ownerID, recordID int64) (decimal.Decimal, error) {
			return decimal.Zero, nil
		},
	})

	rec := serve(http.MethodGet, "/records/{id}/entries", "/records/3/entries", h.ListByRecord, nil, 7)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var page dto.ListEntriesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(page.Entries) != 2 || page.Entries[0].ID != 2 {
		t.Fatalf("unexpected page %+v", page)
	}

	rec = serve(http.MethodGet, "/records/{id}/balance", "/records/3/balance", h.Balance, nil, 7)
	var balance dto.BalanceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &balance); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if balance.Status != domain.StatusDepleted || !balance.Balance.IsZero() {
		t.Fatalf("unexpected balance %+v", balance)
	}
}
