package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/stockledger/internal/domain"
)

// mutation follows one ledger write through its states and reports the
// outcome once it finishes.
type mutation struct {
	started time.Time
	logger  zerolog.Logger
	metrics MetricsRecorder
	op      string
	state   domain.MutationState
}

func startMutation(ctx context.Context, metrics MetricsRecorder, op string) *mutation {
	return &mutation{
		started: time.Now(),
		logger:  zerolog.Ctx(ctx).With().Str("op", op).Logger(),
		metrics: metrics,
		op:      op,
		state:   domain.StateValidating,
	}
}

func (m *mutation) advance(state domain.MutationState) {
	m.state = state
	m.logger.Trace().Str("state", string(state)).Msg("ledger mutation advanced")
}

// finish classifies err, records the final state and returns the error the
// caller should see.
func (m *mutation) finish(err error) error {
	elapsed := time.Since(m.started)

	if err == nil {
		m.state = domain.StateCommitted
		m.metrics.ObserveMutation(m.op, domain.StateCommitted, elapsed)
		m.logger.Debug().Dur("elapsed", elapsed).Msg("ledger mutation committed")
		return nil
	}

	err = classify(err)
	stage := m.state
	m.state = domain.StateRolledBack

	m.metrics.IncMutationFailure(m.op, stage, domain.Kind(err))
	m.metrics.ObserveMutation(m.op, domain.StateRolledBack, elapsed)

	ev := m.logger.Warn()
	if errors.Is(err, domain.ErrPersistence) {
		ev = m.logger.Error()
	}
	ev.Err(err).
		Str("stage", string(stage)).
		Bool("retryable", domain.IsRetryable(err)).
		Dur("elapsed", elapsed).
		Msg("ledger mutation rolled back")

	return err
}

// classify maps store failures onto the retryable ledger error kinds.
func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrLastEntryUndeletable),
		errors.Is(err, domain.ErrContention),
		errors.Is(err, domain.ErrPersistence):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", domain.ErrContention, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
}

// inTx runs fn inside a transaction bounded by timeout. fn's error or a
// failed commit leaves nothing behind.
func inTx(ctx context.Context, txManager TransactionManager, timeout time.Duration, m *mutation, fn func(ctx context.Context, tx Transaction) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	m.advance(domain.StateLocking)

	tx, err := txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
