package domain

import "errors"

var (
	// ErrNotFound covers absent entries, absent records and records owned by
	// someone else. Callers cannot tell these apart.
	ErrNotFound = errors.New("not found")

	ErrValidation           = errors.New("validation failed")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrLastEntryUndeletable = errors.New("cannot delete the only entry of a record")

	// ErrContention is returned when locks could not be acquired in time.
	ErrContention = errors.New("ledger is busy")

	// ErrPersistence wraps any other failure of the underlying store.
	ErrPersistence = errors.New("persistence failure")
)

// IsRetryable reports whether the caller may resubmit the same request.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrContention) || errors.Is(err, ErrPersistence)
}

// Reason returns a human-readable explanation suitable for redisplaying a form.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "Record or entry not found, or access denied"
	case errors.Is(err, ErrValidation):
		return "Please correct the highlighted fields: " + err.Error()
	case errors.Is(err, ErrInsufficientBalance):
		return "Cannot remove more quantity than available"
	case errors.Is(err, ErrLastEntryUndeletable):
		return "Cannot delete the only accounting entry for a record"
	case errors.Is(err, ErrContention):
		return "The ledger is being updated by another request, please try again"
	case errors.Is(err, ErrPersistence):
		return "The change could not be saved, please try again"
	default:
		return "Unexpected error"
	}
}

// Kind returns a stable machine-readable name for the error kind.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrLastEntryUndeletable):
		return "last_entry_undeletable"
	case errors.Is(err, ErrContention):
		return "contention"
	case errors.Is(err, ErrPersistence):
		return "persistence_failure"
	default:
		return "internal_error"
	}
}
