package data

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jobkeeper/jobkeeper/internal/domain/model"
)

// MarkQueued records that a job was handed to a queue. The phase advances
// only from PENDING or HELD; a queue correlation id is recorded whenever one
// is supplied, even on a job already past QUEUED.
func (s *JobStore) MarkQueued(ctx context.Context, id model.JobIdentifier, messageID *string) (*model.Job, error) {
	var job *model.Job
	err := s.withJobTx(ctx, "mark job queued", func(tx pgx.Tx) error {
		j, lerr := s.loadJobInTx(ctx, tx, id)
		if lerr != nil {
			return lerr
		}

		phase := j.Phase
		if phase == model.PhasePending || phase == model.PhaseHeld {
			phase = model.PhaseQueued
		}

		msgID := j.MessageID
		if messageID != nil {
			msgID = messageID
		}

		if _, uerr := tx.Exec(ctx, `
			UPDATE jobs SET phase = $2, message_id = $3 WHERE id = $1
		`, j.ID, phase, msgID); uerr != nil {
			return fmt.Errorf("update job phase: %w", uerr)
		}

		j.Phase = phase
		j.MessageID = msgID
		job = j
		return nil
	})
	if err != nil {
		return nil, s.mapJobError(err, id)
	}
	return job, nil
}

// MarkExecuting records that a worker started running a job. The phase
// advances only from PENDING or QUEUED, but the observed start time is
// recorded unconditionally so a late notification still lands.
func (s *JobStore) MarkExecuting(ctx context.Context, id model.JobIdentifier, startTime time.Time) (*model.Job, error) {
	start := truncateToSecond(startTime)

	var job *model.Job
	err := s.withJobTx(ctx, "mark job executing", func(tx pgx.Tx) error {
		j, lerr := s.loadJobInTx(ctx, tx, id)
		if lerr != nil {
			return lerr
		}

		phase := j.Phase
		if phase == model.PhasePending || phase == model.PhaseQueued {
			phase = model.PhaseExecuting
		}

		if _, uerr := tx.Exec(ctx, `
			UPDATE jobs SET phase = $2, start_time = $3 WHERE id = $1
		`, j.ID, phase, start); uerr != nil {
			return fmt.Errorf("update job phase: %w", uerr)
		}

		j.Phase = phase
		j.StartTime = &start
		job = j
		return nil
	})
	if err != nil {
		return nil, s.mapJobError(err, id)
	}
	return job, nil
}

// MarkCompleted records that a job finished, attaching its results and
// stamping the end time. A job that never reported a start gets the end time
// as its start time too. A job the user already aborted keeps its ABORTED
// phase; the results are still recorded.
func (s *JobStore) MarkCompleted(ctx context.Context, id model.JobIdentifier, results []model.JobResult) (*model.Job, error) {
	endTime := truncateToSecond(s.timeProvider.Now())

	var job *model.Job
	err := s.withJobTx(ctx, "mark job completed", func(tx pgx.Tx) error {
		j, lerr := s.loadJobInTx(ctx, tx, id)
		if lerr != nil {
			return lerr
		}

		s.warnIfTerminal(ctx, j, model.PhaseCompleted)

		phase := j.Phase
		if phase != model.PhaseAborted {
			phase = model.PhaseCompleted
		}

		if _, uerr := tx.Exec(ctx, `
			UPDATE jobs SET phase = $2, end_time = $3, start_time = COALESCE(start_time, $3) WHERE id = $1
		`, j.ID, phase, endTime); uerr != nil {
			return fmt.Errorf("update job phase: %w", uerr)
		}

		appended, aerr := s.appendResultsInTx(ctx, tx, j, results)
		if aerr != nil {
			return aerr
		}

		j.Phase = phase
		j.EndTime = &endTime
		if j.StartTime == nil {
			j.StartTime = &endTime
		}
		j.Results = append(j.Results, appended...)
		job = j
		return nil
	})
	if err != nil {
		return nil, s.mapJobError(err, id)
	}
	return job, nil
}

// MarkFailed records that a job failed, attaching the failure detail and
// stamping the end time. As with completion, a missing start time is filled
// with the end time, and ABORTED is never overwritten but the errors are
// still recorded.
func (s *JobStore) MarkFailed(ctx context.Context, id model.JobIdentifier, jobErrors []model.JobError) (*model.Job, error) {
	endTime := truncateToSecond(s.timeProvider.Now())

	var job *model.Job
	err := s.withJobTx(ctx, "mark job failed", func(tx pgx.Tx) error {
		j, lerr := s.loadJobInTx(ctx, tx, id)
		if lerr != nil {
			return lerr
		}

		s.warnIfTerminal(ctx, j, model.PhaseError)

		phase := j.Phase
		if phase != model.PhaseAborted {
			phase = model.PhaseError
		}

		if _, uerr := tx.Exec(ctx, `
			UPDATE jobs SET phase = $2, end_time = $3, start_time = COALESCE(start_time, $3) WHERE id = $1
		`, j.ID, phase, endTime); uerr != nil {
			return fmt.Errorf("update job phase: %w", uerr)
		}

		for _, je := range jobErrors {
			if _, ierr := tx.Exec(ctx, `
				INSERT INTO job_errors(job_id, type, code, message, detail)
				VALUES ($1, $2, $3, $4, $5)
			`, j.ID, je.Type, je.Code, je.Message, je.Detail); ierr != nil {
				return fmt.Errorf("insert job error: %w", ierr)
			}
		}

		j.Phase = phase
		j.EndTime = &endTime
		if j.StartTime == nil {
			j.StartTime = &endTime
		}
		j.Errors = append(j.Errors, jobErrors...)
		job = j
		return nil
	})
	if err != nil {
		return nil, s.mapJobError(err, id)
	}
	return job, nil
}

// MarkAborted moves a job to ABORTED from any phase. The end time is only
// stamped when the job had actually started.
func (s *JobStore) MarkAborted(ctx context.Context, id model.JobIdentifier) (*model.Job, error) {
	now := truncateToSecond(s.timeProvider.Now())

	var job *model.Job
	err := s.withJobTx(ctx, "mark job aborted", func(tx pgx.Tx) error {
		j, lerr := s.loadJobInTx(ctx, tx, id)
		if lerr != nil {
			return lerr
		}

		endTime := j.EndTime
		if j.StartTime != nil && endTime == nil {
			endTime = &now
		}

		if _, uerr := tx.Exec(ctx, `
			UPDATE jobs SET phase = $2, end_time = $3 WHERE id = $1
		`, j.ID, model.PhaseAborted, endTime); uerr != nil {
			return fmt.Errorf("update job phase: %w", uerr)
		}

		j.Phase = model.PhaseAborted
		j.EndTime = endTime
		job = j
		return nil
	})
	if err != nil {
		return nil, s.mapJobError(err, id)
	}
	return job, nil
}

// MarkArchived retires a job record so expiry no longer considers it.
func (s *JobStore) MarkArchived(ctx context.Context, id model.JobIdentifier) (*model.Job, error) {
	var job *model.Job
	err := s.withJobTx(ctx, "mark job archived", func(tx pgx.Tx) error {
		j, lerr := s.loadJobInTx(ctx, tx, id)
		if lerr != nil {
			return lerr
		}

		if _, uerr := tx.Exec(ctx, `
			UPDATE jobs SET phase = $2 WHERE id = $1
		`, j.ID, model.PhaseArchived); uerr != nil {
			return fmt.Errorf("update job phase: %w", uerr)
		}

		j.Phase = model.PhaseArchived
		job = j
		return nil
	})
	if err != nil {
		return nil, s.mapJobError(err, id)
	}
	return job, nil
}

// UpdateMetadata overwrites a job's destruction time and/or execution
// duration without touching its phase.
func (s *JobStore) UpdateMetadata(ctx context.Context, id model.JobIdentifier, destructionTime *time.Time, executionDuration *int64) (*model.Job, error) {
	destruction := truncateToSecondPtr(destructionTime)

	var job *model.Job
	err := s.withJobTx(ctx, "update job metadata", func(tx pgx.Tx) error {
		j, lerr := s.loadJobInTx(ctx, tx, id)
		if lerr != nil {
			return lerr
		}

		newDestruction := j.DestructionTime
		if destruction != nil {
			newDestruction = *destruction
		}
		newDuration := j.ExecutionDuration
		if executionDuration != nil {
			newDuration = executionDuration
		}

		if _, uerr := tx.Exec(ctx, `
			UPDATE jobs SET destruction_time = $2, execution_duration = $3 WHERE id = $1
		`, j.ID, newDestruction, newDuration); uerr != nil {
			return fmt.Errorf("update job metadata: %w", uerr)
		}

		j.DestructionTime = newDestruction
		j.ExecutionDuration = newDuration
		job = j
		return nil
	})
	if err != nil {
		return nil, s.mapJobError(err, id)
	}
	return job, nil
}

// appendResultsInTx inserts results after a job's existing ones. Sequence
// numbers start at 1 and continue past the existing count.
func (s *JobStore) appendResultsInTx(ctx context.Context, tx pgx.Tx, job *model.Job, results []model.JobResult) ([]model.JobResult, error) {
	next := len(job.Results)

	appended := make([]model.JobResult, 0, len(results))
	for i, res := range results {
		res.Sequence = next + i + 1
		if _, err := tx.Exec(ctx, `
			INSERT INTO job_results(job_id, sequence, result_id, url, size, mime_type)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, job.ID, res.Sequence, res.ID, res.URL, res.Size, res.MimeType); err != nil {
			return nil, fmt.Errorf("insert job result: %w", err)
		}
		appended = append(appended, res)
	}
	return appended, nil
}

// warnIfTerminal flags a terminal transition arriving on a job that already
// finished. The transition is still applied; duplicate worker notifications
// are tolerated but worth surfacing.
func (s *JobStore) warnIfTerminal(ctx context.Context, job *model.Job, requested model.ExecutionPhase) {
	if s.logger == nil {
		return
	}
	switch job.Phase {
	case model.PhaseCompleted, model.PhaseError:
		s.logger.WarnContext(ctx, "terminal transition on finished job",
			"job_id", job.ID,
			"service", job.Service,
			"phase", job.Phase,
			"requested_phase", requested,
		)
	default:
	}
}
