package data

import (
	"context"
	"log/slog"

	apperrors "github.com/jobkeeper/jobkeeper/internal/errors"
)

// txMaxAttempts bounds how many times a storage transaction is re-run when
// the database reports a serialization failure or deadlock.
const txMaxAttempts = 3

// withConflictRetry runs fn up to txMaxAttempts times, retrying only on
// serialization failures and deadlocks. Each invocation of fn must be a
// complete transaction so a retry replays the whole read-modify-write cycle.
// Exhausted retries surface as a Conflict error.
func withConflictRetry(ctx context.Context, logger *slog.Logger, op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= txMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return apperrors.MapDBError(err)
		}

		err := fn()
		if err == nil {
			return nil
		}
		if !apperrors.IsSerializationFailure(err) {
			return err
		}

		lastErr = err
		if logger != nil {
			logger.DebugContext(ctx, "retrying transaction after conflict",
				"op", op,
				"attempt", attempt,
				"error", err,
			)
		}
	}

	return apperrors.Wrapf(lastErr, apperrors.ErrCodeConflict,
		"%s: transaction conflict persisted after %d attempts", op, txMaxAttempts)
}
