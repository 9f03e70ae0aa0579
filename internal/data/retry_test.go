package data

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jobkeeper/jobkeeper/internal/errors"
)

func serializationErr() error {
	return &pgconn.PgError{Code: pgerrcode.SerializationFailure, Message: "could not serialize access"}
}

func TestWithConflictRetry_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := withConflictRetry(context.Background(), nil, "test op", func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithConflictRetry_NonRetryableReturnsImmediately(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := withConflictRetry(context.Background(), nil, "test op", func() error {
		calls++
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestWithConflictRetry_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	err := withConflictRetry(context.Background(), nil, "test op", func() error {
		calls++
		if calls < 3 {
			return serializationErr()
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithConflictRetry_ExhaustionBecomesConflict(t *testing.T) {
	calls := 0
	err := withConflictRetry(context.Background(), nil, "test op", func() error {
		calls++
		return serializationErr()
	})

	require.Error(t, err)
	assert.Equal(t, txMaxAttempts, calls)
	assert.True(t, apperrors.IsConflict(err), "expected conflict error, got %v", err)

	var pgErr *pgconn.PgError
	assert.True(t, errors.As(err, &pgErr), "original database error should be preserved in the chain")
}

func TestWithConflictRetry_DeadlockIsRetryable(t *testing.T) {
	calls := 0
	err := withConflictRetry(context.Background(), nil, "test op", func() error {
		calls++
		if calls == 1 {
			return &pgconn.PgError{Code: pgerrcode.DeadlockDetected, Message: "deadlock detected"}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestWithConflictRetry_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := withConflictRetry(ctx, nil, "test op", func() error {
		calls++
		return nil
	})

	require.Error(t, err)
	assert.Equal(t, 0, calls)
	assert.True(t, apperrors.IsCanceled(err), "expected canceled error, got %v", err)
}
