package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJobUpdate_Variants(t *testing.T) {
	t.Run("aborted", func(t *testing.T) {
		update, err := ParseJobUpdate([]byte(`{"phase": "ABORTED"}`))
		require.NoError(t, err)
		assert.IsType(t, UpdateAborted{}, update)
	})

	t.Run("completed with results", func(t *testing.T) {
		update, err := ParseJobUpdate([]byte(`{
			"phase": "COMPLETED",
			"results": [
				{"id": "table", "url": "https://results.example.org/table"},
				{"id": "preview", "url": "https://results.example.org/preview", "size": 512}
			]
		}`))
		require.NoError(t, err)

		completed, ok := update.(UpdateCompleted)
		require.True(t, ok)
		require.Len(t, completed.Results, 2)
		assert.Equal(t, "table", completed.Results[0].ID)
		require.NotNil(t, completed.Results[1].Size)
		assert.Equal(t, int64(512), *completed.Results[1].Size)
	})

	t.Run("completed without results", func(t *testing.T) {
		update, err := ParseJobUpdate([]byte(`{"phase": "COMPLETED"}`))
		require.NoError(t, err)
		completed, ok := update.(UpdateCompleted)
		require.True(t, ok)
		assert.Empty(t, completed.Results)
	})

	t.Run("failed with errors", func(t *testing.T) {
		update, err := ParseJobUpdate([]byte(`{
			"phase": "ERROR",
			"errors": [{"type": "fatal", "code": "QUERY_ERROR", "message": "bad query"}]
		}`))
		require.NoError(t, err)

		failed, ok := update.(UpdateFailed)
		require.True(t, ok)
		require.Len(t, failed.Errors, 1)
		assert.Equal(t, ErrorTypeFatal, failed.Errors[0].Type)
	})

	t.Run("executing", func(t *testing.T) {
		update, err := ParseJobUpdate([]byte(`{"phase": "EXECUTING", "start_time": "2024-03-15T09:30:00Z"}`))
		require.NoError(t, err)

		executing, ok := update.(UpdateExecuting)
		require.True(t, ok)
		assert.Equal(t, time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC), executing.StartTime.UTC())
	})

	t.Run("queued with message id", func(t *testing.T) {
		update, err := ParseJobUpdate([]byte(`{"phase": "QUEUED", "message_id": "msg-7"}`))
		require.NoError(t, err)

		queued, ok := update.(UpdateQueued)
		require.True(t, ok)
		require.NotNil(t, queued.MessageID)
		assert.Equal(t, "msg-7", *queued.MessageID)
	})

	t.Run("queued without message id", func(t *testing.T) {
		update, err := ParseJobUpdate([]byte(`{"phase": "QUEUED"}`))
		require.NoError(t, err)
		queued, ok := update.(UpdateQueued)
		require.True(t, ok)
		assert.Nil(t, queued.MessageID)
	})

	t.Run("metadata", func(t *testing.T) {
		update, err := ParseJobUpdate([]byte(`{"destruction_time": "2024-06-01T00:00:00Z", "execution_duration": 600}`))
		require.NoError(t, err)

		meta, ok := update.(UpdateMetadata)
		require.True(t, ok)
		require.NotNil(t, meta.DestructionTime)
		require.NotNil(t, meta.ExecutionDuration)
		assert.Equal(t, int64(600), *meta.ExecutionDuration)
	})
}

func TestParseJobUpdate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		errMsg string
	}{
		{
			name:   "not json",
			body:   `{broken`,
			errMsg: "decode job update",
		},
		{
			name:   "unknown field",
			body:   `{"phase": "ABORTED", "bogus": true}`,
			errMsg: "decode job update",
		},
		{
			name:   "empty metadata update",
			body:   `{}`,
			errMsg: "metadata update must set destruction_time or execution_duration",
		},
		{
			name:   "nonpositive execution duration",
			body:   `{"execution_duration": 0}`,
			errMsg: "execution_duration must be positive",
		},
		{
			name:   "unsupported target phase",
			body:   `{"phase": "PENDING"}`,
			errMsg: "cannot update job to phase PENDING",
		},
		{
			name:   "archived is not a client transition",
			body:   `{"phase": "ARCHIVED"}`,
			errMsg: "cannot update job to phase ARCHIVED",
		},
		{
			name:   "invalid phase name",
			body:   `{"phase": "RUNNING"}`,
			errMsg: "invalid execution phase",
		},
		{
			name:   "executing without start time",
			body:   `{"phase": "EXECUTING"}`,
			errMsg: "executing update requires start_time",
		},
		{
			name:   "error without errors",
			body:   `{"phase": "ERROR"}`,
			errMsg: "failed update requires at least one error",
		},
		{
			name:   "error with invalid type",
			body:   `{"phase": "ERROR", "errors": [{"type": "warning", "code": "X", "message": "y"}]}`,
			errMsg: "invalid error type",
		},
		{
			name:   "error missing code",
			body:   `{"phase": "ERROR", "errors": [{"type": "fatal", "message": "y"}]}`,
			errMsg: "each error requires a code and a message",
		},
		{
			name:   "result missing url",
			body:   `{"phase": "COMPLETED", "results": [{"id": "table"}]}`,
			errMsg: "each result requires an id and a url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			update, err := ParseJobUpdate([]byte(tt.body))
			require.Error(t, err)
			assert.Nil(t, update)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
