// Package model defines the core data types and structures used throughout the jobkeeper job store.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ExecutionPhase represents the current lifecycle phase of a job.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type ExecutionPhase string

const (
	// PhasePending indicates a job has been created but not yet handed to a queue.
	PhasePending ExecutionPhase = "PENDING"
	// PhaseQueued indicates a job has been handed to a queuing system.
	PhaseQueued ExecutionPhase = "QUEUED"
	// PhaseHeld indicates a job is being held before queuing by an external frontend.
	PhaseHeld ExecutionPhase = "HELD"
	// PhaseExecuting indicates a worker has started running the job.
	PhaseExecuting ExecutionPhase = "EXECUTING"
	// PhaseCompleted indicates the job finished successfully.
	PhaseCompleted ExecutionPhase = "COMPLETED"
	// PhaseError indicates the job failed.
	PhaseError ExecutionPhase = "ERROR"
	// PhaseAborted indicates the job was aborted by the user or operator.
	PhaseAborted ExecutionPhase = "ABORTED"
	// PhaseArchived indicates the job record has been retired and is no longer subject to expiry.
	PhaseArchived ExecutionPhase = "ARCHIVED"
)

// Valid returns true if the ExecutionPhase is one of the known phases.
func (p ExecutionPhase) Valid() bool {
	switch p {
	case PhasePending, PhaseQueued, PhaseHeld, PhaseExecuting,
		PhaseCompleted, PhaseError, PhaseAborted, PhaseArchived:
		return true
	default:
		return false
	}
}

// UnmarshalText implements encoding.TextUnmarshaler so phases can be parsed
// from query parameters and JSON bodies.
func (p *ExecutionPhase) UnmarshalText(text []byte) error {
	v := ExecutionPhase(strings.ToUpper(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid execution phase: %q", string(text))
	}
	*p = v
	return nil
}

// ErrorType categorizes a job error as transient or fatal.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type ErrorType string

const (
	// ErrorTypeTransient marks an error the client may retry.
	ErrorTypeTransient ErrorType = "transient"
	// ErrorTypeFatal marks a permanent error.
	ErrorTypeFatal ErrorType = "fatal"
)

// Valid returns true if the ErrorType is valid.
func (t ErrorType) Valid() bool {
	return t == ErrorTypeTransient || t == ErrorTypeFatal
}

// UnmarshalText implements encoding.TextUnmarshaler for ErrorType.
func (t *ErrorType) UnmarshalText(text []byte) error {
	v := ErrorType(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid error type: %q", string(text))
	}
	*t = v
	return nil
}

// Job is a single UWS job record. Instances returned by the store are
// detached snapshots; mutating them has no effect on persisted state.
type Job struct {
	ID                int64           `json:"id"                           db:"id"`
	Service           string          `json:"service,omitempty"            db:"service"`
	Owner             string          `json:"owner"                        db:"owner"`
	Phase             ExecutionPhase  `json:"phase"                        db:"phase"`
	RunID             *string         `json:"run_id,omitempty"             db:"run_id"`
	Parameters        json.RawMessage `json:"parameters"                   db:"parameters"`
	MessageID         *string         `json:"message_id,omitempty"         db:"message_id"`
	CreationTime      time.Time       `json:"creation_time"                db:"creation_time"`
	StartTime         *time.Time      `json:"start_time,omitempty"         db:"start_time"`
	EndTime           *time.Time      `json:"end_time,omitempty"           db:"end_time"`
	DestructionTime   time.Time       `json:"destruction_time"             db:"destruction_time"`
	ExecutionDuration *int64          `json:"execution_duration,omitempty" db:"execution_duration"`
	Quote             *time.Time      `json:"quote,omitempty"              db:"quote"`
	Errors            []JobError      `json:"errors,omitempty"`
	Results           []JobResult     `json:"results,omitempty"`
}

// JobResult is one output of a completed job. Sequence numbers start at 1,
// are assigned at append time, and establish a stable display order.
type JobResult struct {
	ID       string  `json:"id"                  db:"result_id"`
	Sequence int     `json:"sequence"            db:"sequence"`
	URL      string  `json:"url"                 db:"url"`
	Size     *int64  `json:"size,omitempty"      db:"size"`
	MimeType *string `json:"mime_type,omitempty" db:"mime_type"`
}

// JobError records one failure detail attached to a job.
type JobError struct {
	Type    ErrorType `json:"type"             db:"type"`
	Code    string    `json:"code"             db:"code"`
	Message string    `json:"message"          db:"message"`
	Detail  *string   `json:"detail,omitempty" db:"detail"`
}

// JobIdentifier names a unique job. Service scoping is always applied; when
// Owner is non-empty a job owned by anyone else is treated as nonexistent.
type JobIdentifier struct {
	Service string
	ID      int64
	Owner   string
}

// String formats the identifier for log and error messages.
func (i JobIdentifier) String() string {
	if i.Owner != "" {
		return fmt.Sprintf("%s/%s/%d", i.Service, i.Owner, i.ID)
	}
	return fmt.Sprintf("%s/%d", i.Service, i.ID)
}

// CreateJobRequest carries the client-supplied portion of a new job record.
type CreateJobRequest struct {
	Parameters        json.RawMessage `json:"parameters"`
	RunID             *string         `json:"run_id,omitempty"`
	DestructionTime   time.Time       `json:"destruction_time"`
	ExecutionDuration *int64          `json:"execution_duration,omitempty"`
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if len(r.Parameters) == 0 {
		return errors.New("parameters are required")
	}
	if !json.Valid(r.Parameters) {
		return errors.New("parameters must be valid JSON")
	}
	if r.DestructionTime.IsZero() {
		return errors.New("destruction_time is required")
	}
	if r.ExecutionDuration != nil && *r.ExecutionDuration <= 0 {
		return errors.New("execution_duration must be positive")
	}
	return nil
}

// Availability reports whether the backing store is reachable.
type Availability struct {
	Available bool   `json:"available"`
	Note      string `json:"note,omitempty"`
}
