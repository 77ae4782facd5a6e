package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iho/stockledger/internal/domain"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", pgx.ErrNoRows, domain.ErrNotFound},
		{"deadline", fmt.Errorf("lock: %w", context.DeadlineExceeded), domain.ErrContention},
		{"lock timeout", &pgconn.PgError{Code: pgErrLockNotAvailable}, domain.ErrContention},
		{"deadlock", &pgconn.PgError{Code: pgErrDeadlock}, domain.ErrContention},
		{"serialization", &pgconn.PgError{Code: pgErrSerializationFailure}, domain.ErrContention},
		{"statement timeout", &pgconn.PgError{Code: pgErrQueryCanceled}, domain.ErrContention},
		{"duplicate code", &pgconn.PgError{Code: pgErrUniqueViolation}, domain.ErrValidation},
		{"check constraint", &pgconn.PgError{Code: pgErrCheckViolation, ConstraintName: "stock_entries_quantity_in_check"}, domain.ErrValidation},
		{"balance overflow", &pgconn.PgError{Code: pgErrNumericOutOfRange}, domain.ErrValidation},
		{"missing record", &pgconn.PgError{Code: pgErrForeignKeyViolation}, domain.ErrNotFound},
		{"other", errors.New("connection reset"), domain.ErrPersistence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyError(tt.err); !errors.Is(got, tt.want) {
				t.Fatalf("classifyError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}

	if domain.IsRetryable(classifyError(&pgconn.PgError{Code: pgErrNumericOutOfRange})) {
		t.Fatalf("numeric overflow must not be retryable")
	}

	if classifyError(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}
