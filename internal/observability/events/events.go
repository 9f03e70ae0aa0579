// Package events publishes job lifecycle notifications for downstream
// consumers.
package events

import (
	"context"
	"time"
)

// EventType names a lifecycle notification.
type EventType string

const (
	// EventJobCreated fires when a new job record is added.
	EventJobCreated EventType = "job_created"
	// EventJobQueued fires when a job is handed to a queue.
	EventJobQueued EventType = "job_queued"
	// EventJobExecuting fires when a worker starts a job.
	EventJobExecuting EventType = "job_executing"
	// EventJobCompleted fires when a job finishes successfully.
	EventJobCompleted EventType = "job_completed"
	// EventJobFailed fires when a job fails.
	EventJobFailed EventType = "job_failed"
	// EventJobAborted fires when a job is aborted.
	EventJobAborted EventType = "job_aborted"
)

// JobEvent is the payload delivered for every lifecycle notification.
// Elapsed is only set on completed and failed events.
type JobEvent struct {
	Type      EventType      `json:"type"`
	JobID     int64          `json:"job_id"`
	Service   string         `json:"service"`
	Owner     string         `json:"owner"`
	Timestamp time.Time      `json:"timestamp"`
	Elapsed   *time.Duration `json:"elapsed,omitempty"`
}

// Publisher delivers lifecycle events. Implementations must tolerate
// publish failures without affecting the job operation that produced the
// event.
type Publisher interface {
	Publish(ctx context.Context, event JobEvent) error
}

// NopPublisher discards every event. Used when no event backend is
// configured.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, JobEvent) error {
	return nil
}
