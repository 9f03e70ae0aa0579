// Package service implements the job bookkeeping operations on top of the
// store, adding tenant scoping and lifecycle event publication.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jobkeeper/jobkeeper/internal/domain/model"
	apperrors "github.com/jobkeeper/jobkeeper/internal/errors"
	"github.com/jobkeeper/jobkeeper/internal/observability/events"
)

// JobStore is the persistence surface JobService operates on.
type JobStore interface {
	Add(ctx context.Context, service, owner string, req *model.CreateJobRequest) (*model.Job, error)
	Get(ctx context.Context, id model.JobIdentifier) (*model.Job, error)
	Delete(ctx context.Context, id model.JobIdentifier) (bool, error)
	List(ctx context.Context, service, owner string, search model.JobSearch) (*model.JobList, error)
	ListExpired(ctx context.Context) ([]*model.Job, error)
	ListServices(ctx context.Context) ([]string, error)
	ListUsers(ctx context.Context, service string) ([]string, error)
	Availability(ctx context.Context) model.Availability

	MarkQueued(ctx context.Context, id model.JobIdentifier, messageID *string) (*model.Job, error)
	MarkExecuting(ctx context.Context, id model.JobIdentifier, startTime time.Time) (*model.Job, error)
	MarkCompleted(ctx context.Context, id model.JobIdentifier, results []model.JobResult) (*model.Job, error)
	MarkFailed(ctx context.Context, id model.JobIdentifier, jobErrors []model.JobError) (*model.Job, error)
	MarkAborted(ctx context.Context, id model.JobIdentifier) (*model.Job, error)
	MarkArchived(ctx context.Context, id model.JobIdentifier) (*model.Job, error)
	UpdateMetadata(ctx context.Context, id model.JobIdentifier, destructionTime *time.Time, executionDuration *int64) (*model.Job, error)
}

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Store     JobStore         // Required: job persistence
	Publisher events.Publisher // Optional: lifecycle event publisher
	Logger    *slog.Logger     // Optional: structured logger
}

// JobService provides the tenant-facing job bookkeeping operations.
type JobService struct {
	store     JobStore
	publisher events.Publisher
	logger    *slog.Logger
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Store == nil {
		return nil, errors.New("JobStore is required")
	}

	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "job_service")
	}

	return &JobService{
		store:     opts.Store,
		publisher: publisher,
		logger:    logger,
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// Create records a new job for the tenant and announces it.
func (s *JobService) Create(ctx context.Context, service, owner string, req *model.CreateJobRequest) (*model.Job, error) {
	job, err := s.store.Add(ctx, service, owner, req)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "job created",
			"id", job.ID,
			"service", job.Service,
			"owner", job.Owner,
		)
	}

	s.publish(ctx, job, events.EventJobCreated, nil)
	return job, nil
}

// Get returns one job. A job owned by someone else is reported exactly like
// a job that does not exist.
func (s *JobService) Get(ctx context.Context, id model.JobIdentifier) (*model.Job, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// Delete permanently removes a job along with its results and errors.
func (s *JobService) Delete(ctx context.Context, id model.JobIdentifier) error {
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	if !deleted {
		return apperrors.NotFoundf("job %s not found", id)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job deleted", "id", id.ID, "service", id.Service)
	}
	return nil
}

// Update applies one of the closed set of job mutations and publishes the
// matching lifecycle event.
func (s *JobService) Update(ctx context.Context, id model.JobIdentifier, update model.JobUpdate) (*model.Job, error) {
	switch u := update.(type) {
	case model.UpdateQueued:
		job, err := s.store.MarkQueued(ctx, id, u.MessageID)
		if err != nil {
			return nil, fmt.Errorf("mark job %s queued: %w", id, err)
		}
		s.publish(ctx, job, events.EventJobQueued, nil)
		return job, nil

	case model.UpdateExecuting:
		job, err := s.store.MarkExecuting(ctx, id, u.StartTime)
		if err != nil {
			return nil, fmt.Errorf("mark job %s executing: %w", id, err)
		}
		s.publish(ctx, job, events.EventJobExecuting, nil)
		return job, nil

	case model.UpdateCompleted:
		job, err := s.store.MarkCompleted(ctx, id, u.Results)
		if err != nil {
			return nil, fmt.Errorf("mark job %s completed: %w", id, err)
		}
		elapsed, err := jobElapsed(job)
		if err != nil {
			return nil, err
		}
		s.publish(ctx, job, events.EventJobCompleted, elapsed)
		return job, nil

	case model.UpdateFailed:
		job, err := s.store.MarkFailed(ctx, id, u.Errors)
		if err != nil {
			return nil, fmt.Errorf("mark job %s failed: %w", id, err)
		}
		elapsed, err := jobElapsed(job)
		if err != nil {
			return nil, err
		}
		s.publish(ctx, job, events.EventJobFailed, elapsed)
		return job, nil

	case model.UpdateAborted:
		job, err := s.store.MarkAborted(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("mark job %s aborted: %w", id, err)
		}
		s.publish(ctx, job, events.EventJobAborted, nil)
		return job, nil

	case model.UpdateMetadata:
		job, err := s.store.UpdateMetadata(ctx, id, u.DestructionTime, u.ExecutionDuration)
		if err != nil {
			return nil, fmt.Errorf("update job %s metadata: %w", id, err)
		}
		return job, nil

	default:
		return nil, apperrors.Internalf("unhandled job update %T", update)
	}
}

// Archive retires a job record so expiry no longer considers it.
func (s *JobService) Archive(ctx context.Context, id model.JobIdentifier) (*model.Job, error) {
	job, err := s.store.MarkArchived(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("archive job %s: %w", id, err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job archived", "id", id.ID, "service", id.Service)
	}
	return job, nil
}

// List returns one page of the tenant's jobs.
func (s *JobService) List(ctx context.Context, service, owner string, search model.JobSearch) (*model.JobList, error) {
	list, err := s.store.List(ctx, service, owner, search)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return list, nil
}

// DeleteExpired removes every job whose destruction time has passed,
// skipping archived records. It returns the number of jobs deleted.
func (s *JobService) DeleteExpired(ctx context.Context) (int, error) {
	expired, err := s.store.ListExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("list expired jobs: %w", err)
	}

	deleted := 0
	for _, job := range expired {
		id := model.JobIdentifier{Service: job.Service, ID: job.ID, Owner: job.Owner}
		ok, derr := s.store.Delete(ctx, id)
		if derr != nil {
			return deleted, fmt.Errorf("delete expired job %s: %w", id, derr)
		}
		if ok {
			deleted++
		}
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "expired jobs deleted", "count", deleted)
	}
	return deleted, nil
}

// ListServices returns the service names with jobs on record.
func (s *JobService) ListServices(ctx context.Context) ([]string, error) {
	services, err := s.store.ListServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return services, nil
}

// ListUsers returns the owners with jobs on record, restricted to one
// service when given.
func (s *JobService) ListUsers(ctx context.Context, service string) ([]string, error) {
	users, err := s.store.ListUsers(ctx, service)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Availability reports whether the backing store is reachable.
func (s *JobService) Availability(ctx context.Context) model.Availability {
	return s.store.Availability(ctx)
}

// jobElapsed computes how long a finished job ran. A finished job without
// both timestamps means the store and the state machine disagree, which is
// an internal fault rather than a client error.
func jobElapsed(job *model.Job) (*time.Duration, error) {
	if job.StartTime == nil {
		return nil, apperrors.Internalf("job %d finished without a start time", job.ID)
	}
	if job.EndTime == nil {
		return nil, apperrors.Internalf("job %d finished without an end time", job.ID)
	}
	elapsed := job.EndTime.Sub(*job.StartTime)
	return &elapsed, nil
}

// publish delivers a lifecycle event. Publish failures never fail the
// operation that produced them.
func (s *JobService) publish(ctx context.Context, job *model.Job, eventType events.EventType, elapsed *time.Duration) {
	event := events.JobEvent{
		Type:      eventType,
		JobID:     job.ID,
		Service:   job.Service,
		Owner:     job.Owner,
		Timestamp: time.Now().UTC(),
		Elapsed:   elapsed,
	}

	if err := s.publisher.Publish(ctx, event); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "publish job event failed",
			"event", eventType,
			"job_id", job.ID,
			"error", err,
		)
	}
}
