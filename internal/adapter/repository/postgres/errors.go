package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iho/stockledger/internal/domain"
)

// PostgreSQL error codes the ledger reacts to.
const (
	pgErrDeadlock             = "40P01"
	pgErrSerializationFailure = "40001"
	pgErrLockNotAvailable     = "55P03"
	pgErrQueryCanceled        = "57014"
	pgErrUniqueViolation      = "23505"
	pgErrCheckViolation       = "23514"
	pgErrNumericOutOfRange    = "22003"
	pgErrForeignKeyViolation  = "23503"
)

// classifyError maps a driver error onto the ledger error kinds. Lock waits
// that time out or deadlock become domain.ErrContention so callers know they
// may resubmit.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrContention, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrDeadlock, pgErrSerializationFailure, pgErrLockNotAvailable, pgErrQueryCanceled:
			return fmt.Errorf("%w: %s", domain.ErrContention, pgErr.Message)
		case pgErrUniqueViolation:
			return fmt.Errorf("%w: record code already exists", domain.ErrValidation)
		case pgErrNumericOutOfRange:
			return fmt.Errorf("%w: quantity out of range", domain.ErrValidation)
		case pgErrCheckViolation:
			return fmt.Errorf("%w: %s", domain.ErrValidation, pgErr.ConstraintName)
		case pgErrForeignKeyViolation:
			return domain.ErrNotFound
		}
	}

	return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
}
