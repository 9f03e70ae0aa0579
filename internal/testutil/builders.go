package testutil

import (
	"encoding/json"
	"time"

	"github.com/jobkeeper/jobkeeper/internal/domain/model"
)

// JobRequestBuilder provides a fluent interface for building CreateJobRequest objects for testing.
type JobRequestBuilder struct {
	req *model.CreateJobRequest
}

// NewJobRequest creates a new JobRequestBuilder with sensible defaults.
func NewJobRequest() *JobRequestBuilder {
	return &JobRequestBuilder{
		req: &model.CreateJobRequest{
			Parameters:      json.RawMessage(`{"query": "SELECT TOP 10 * FROM ivoa.obscore"}`),
			DestructionTime: TestTime().Add(72 * time.Hour),
		},
	}
}

// WithParameters sets the job parameters.
func (b *JobRequestBuilder) WithParameters(parameters json.RawMessage) *JobRequestBuilder {
	b.req.Parameters = parameters
	return b
}

// WithParametersString sets the job parameters from a string.
func (b *JobRequestBuilder) WithParametersString(parameters string) *JobRequestBuilder {
	b.req.Parameters = json.RawMessage(parameters)
	return b
}

// WithRunID sets the client-supplied run identifier.
func (b *JobRequestBuilder) WithRunID(runID string) *JobRequestBuilder {
	b.req.RunID = &runID
	return b
}

// WithDestructionTime sets the destruction time.
func (b *JobRequestBuilder) WithDestructionTime(t time.Time) *JobRequestBuilder {
	b.req.DestructionTime = t
	return b
}

// WithExecutionDuration sets the execution duration limit in seconds.
func (b *JobRequestBuilder) WithExecutionDuration(seconds int64) *JobRequestBuilder {
	b.req.ExecutionDuration = &seconds
	return b
}

// Build returns the constructed CreateJobRequest.
func (b *JobRequestBuilder) Build() *model.CreateJobRequest {
	return b.req
}

// SampleResult returns a job result suitable for attaching in tests.
func SampleResult(id string) model.JobResult {
	return model.JobResult{
		ID:       id,
		URL:      "https://results.example.org/" + id,
		Size:     Int64Ptr(2048),
		MimeType: StringPtr("application/x-votable+xml"),
	}
}

// SampleError returns a job error suitable for attaching in tests.
func SampleError(code string) model.JobError {
	return model.JobError{
		Type:    model.ErrorTypeFatal,
		Code:    code,
		Message: "query execution failed",
		Detail:  StringPtr("worker reported a fatal failure"),
	}
}
