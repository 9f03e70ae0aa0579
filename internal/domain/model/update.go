package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// JobUpdate is the closed set of mutations that can be applied to an
// existing job. Each variant names the phase transition it requests, except
// UpdateMetadata which changes scheduling fields only. The set is sealed via
// the unexported marker method so dispatch can be exhaustive.
type JobUpdate interface {
	isJobUpdate()
}

// UpdateAborted requests a transition to ABORTED.
type UpdateAborted struct{}

// UpdateCompleted requests a transition to COMPLETED, carrying final results.
type UpdateCompleted struct {
	Results []JobResult
}

// UpdateFailed requests a transition to ERROR, carrying failure detail.
type UpdateFailed struct {
	Errors []JobError
}

// UpdateExecuting requests a transition to EXECUTING with the observed start instant.
type UpdateExecuting struct {
	StartTime time.Time
}

// UpdateQueued requests a transition to QUEUED, optionally recording a queue
// correlation id.
type UpdateQueued struct {
	MessageID *string
}

// UpdateMetadata overwrites destruction_time and/or execution_duration
// without changing the phase.
type UpdateMetadata struct {
	DestructionTime   *time.Time
	ExecutionDuration *int64
}

func (UpdateAborted) isJobUpdate()   {}
func (UpdateCompleted) isJobUpdate() {}
func (UpdateFailed) isJobUpdate()    {}
func (UpdateExecuting) isJobUpdate() {}
func (UpdateQueued) isJobUpdate()    {}
func (UpdateMetadata) isJobUpdate()  {}

// jobUpdateBody is the wire shape of a PATCH body. The phase field selects
// the variant; a body without a phase is a metadata update.
type jobUpdateBody struct {
	Phase             *ExecutionPhase `json:"phase,omitempty"`
	Results           []JobResult     `json:"results,omitempty"`
	Errors            []JobError      `json:"errors,omitempty"`
	StartTime         *time.Time      `json:"start_time,omitempty"`
	MessageID         *string         `json:"message_id,omitempty"`
	DestructionTime   *time.Time      `json:"destruction_time,omitempty"`
	ExecutionDuration *int64          `json:"execution_duration,omitempty"`
}

// ParseJobUpdate decodes a job update from its JSON wire form and validates
// the variant shape. Updates naming any phase outside the supported set are
// rejected here, before they reach the store.
func ParseJobUpdate(raw []byte) (JobUpdate, error) {
	var body jobUpdateBody
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("decode job update: %w", err)
	}

	if body.Phase == nil {
		if body.DestructionTime == nil && body.ExecutionDuration == nil {
			return nil, errors.New("metadata update must set destruction_time or execution_duration")
		}
		if body.ExecutionDuration != nil && *body.ExecutionDuration <= 0 {
			return nil, errors.New("execution_duration must be positive")
		}
		return UpdateMetadata{
			DestructionTime:   body.DestructionTime,
			ExecutionDuration: body.ExecutionDuration,
		}, nil
	}

	switch *body.Phase {
	case PhaseAborted:
		return UpdateAborted{}, nil
	case PhaseCompleted:
		for i := range body.Results {
			if body.Results[i].ID == "" || body.Results[i].URL == "" {
				return nil, errors.New("each result requires an id and a url")
			}
		}
		return UpdateCompleted{Results: body.Results}, nil
	case PhaseError:
		if len(body.Errors) == 0 {
			return nil, errors.New("failed update requires at least one error")
		}
		for i := range body.Errors {
			if !body.Errors[i].Type.Valid() {
				return nil, fmt.Errorf("invalid error type: %q", body.Errors[i].Type)
			}
			if body.Errors[i].Code == "" || body.Errors[i].Message == "" {
				return nil, errors.New("each error requires a code and a message")
			}
		}
		return UpdateFailed{Errors: body.Errors}, nil
	case PhaseExecuting:
		if body.StartTime == nil {
			return nil, errors.New("executing update requires start_time")
		}
		return UpdateExecuting{StartTime: *body.StartTime}, nil
	case PhaseQueued:
		return UpdateQueued{MessageID: body.MessageID}, nil
	default:
		return nil, fmt.Errorf("cannot update job to phase %s", *body.Phase)
	}
}
