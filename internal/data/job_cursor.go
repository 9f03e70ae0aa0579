package data

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jobkeeper/jobkeeper/internal/domain/model"
	apperrors "github.com/jobkeeper/jobkeeper/internal/errors"
)

// jobCursorPayload is the wire shape of a pagination token. Time and ID name
// a position in the (creation_time desc, id desc) listing order; Previous
// selects the page before that position.
type jobCursorPayload struct {
	Time     time.Time `json:"time"`
	ID       int64     `json:"id"`
	Previous bool      `json:"previous,omitempty"`
}

// EncodeJobCursor serializes a cursor into its opaque token form.
func EncodeJobCursor(cur model.JobCursor) (string, error) {
	raw, err := json.Marshal(jobCursorPayload{
		Time:     cur.Time.UTC(),
		ID:       cur.ID,
		Previous: cur.Previous,
	})
	if err != nil {
		return "", fmt.Errorf("marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// DecodeJobCursor parses an opaque token back into a cursor. Malformed
// tokens, including truncated base64 and valid JSON missing the position
// fields, yield a Validation error.
func DecodeJobCursor(token string) (model.JobCursor, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return model.JobCursor{}, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid cursor encoding")
	}

	var payload jobCursorPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return model.JobCursor{}, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid cursor payload")
	}
	if payload.Time.IsZero() || payload.ID == 0 {
		return model.JobCursor{}, apperrors.Validation("cursor is missing its position")
	}

	return model.JobCursor{
		Time:     payload.Time.UTC(),
		ID:       payload.ID,
		Previous: payload.Previous,
	}, nil
}
