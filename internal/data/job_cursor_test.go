package data

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobkeeper/jobkeeper/internal/domain/model"
	apperrors "github.com/jobkeeper/jobkeeper/internal/errors"
)

func TestJobCursor_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		cursor model.JobCursor
	}{
		{
			name: "forward cursor",
			cursor: model.JobCursor{
				Time: time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC),
				ID:   42,
			},
		},
		{
			name: "previous cursor",
			cursor: model.JobCursor{
				Time:     time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC),
				ID:       7,
				Previous: true,
			},
		},
		{
			name: "non-UTC time is normalized",
			cursor: model.JobCursor{
				Time: time.Date(2024, 3, 15, 9, 30, 0, 0, time.FixedZone("CET", 3600)),
				ID:   3,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := EncodeJobCursor(tt.cursor)
			require.NoError(t, err)
			require.NotEmpty(t, token)

			decoded, err := DecodeJobCursor(token)
			require.NoError(t, err)

			assert.True(t, decoded.Time.Equal(tt.cursor.Time))
			assert.Equal(t, time.UTC, decoded.Time.Location())
			assert.Equal(t, tt.cursor.ID, decoded.ID)
			assert.Equal(t, tt.cursor.Previous, decoded.Previous)
		})
	}
}

func TestDecodeJobCursor_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "not base64", token: "%%%not-base64%%%"},
		{name: "base64 but not json", token: base64.URLEncoding.EncodeToString([]byte("not json"))},
		{name: "json missing position", token: base64.URLEncoding.EncodeToString([]byte(`{}`))},
		{name: "zero id", token: base64.URLEncoding.EncodeToString([]byte(`{"time":"2024-03-15T09:30:00Z","id":0}`))},
		{name: "zero time", token: base64.URLEncoding.EncodeToString([]byte(`{"id":5}`))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeJobCursor(tt.token)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err), "expected validation error, got %v", err)
		})
	}
}
