package usecase

import "time"

const (
	// DefaultTransactionTimeout bounds a whole ledger mutation, lock waits included.
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultSummaryTTL is how long summaries stay cached when a cache is configured.
	DefaultSummaryTTL = 30 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// IdempotencyPending is stored under a key while its first request runs.
	IdempotencyPending = "processing"

	// reconcileBatchSize is the page size used when walking all records of an owner.
	reconcileBatchSize = 500
)
