package httpx

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jobkeeper/jobkeeper/internal/data"
	"github.com/jobkeeper/jobkeeper/internal/domain/model"
	apperrors "github.com/jobkeeper/jobkeeper/internal/errors"
)

// Listing query parameters.
const (
	paramPhase  = "phase"
	paramSince  = "since"
	paramLimit  = "limit"
	paramCursor = "cursor"
)

// parseJobSearch extracts the listing filters from the request. The second
// return value reports whether the client asked for pagination (a cursor or
// a limit), which controls whether Link headers are emitted.
func parseJobSearch(r *http.Request, defaultLimit int) (model.JobSearch, bool, error) {
	q := r.URL.Query()
	var search model.JobSearch

	for _, raw := range q[paramPhase] {
		var phase model.ExecutionPhase
		if err := phase.UnmarshalText([]byte(raw)); err != nil {
			return search, false, apperrors.ValidationField(paramPhase, err.Error())
		}
		search.Phases = append(search.Phases, phase)
	}

	if raw := q.Get(paramSince); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return search, false, apperrors.ValidationField(paramSince, "must be an RFC 3339 timestamp")
		}
		search.Since = &since
	}

	paginated := false
	if raw := q.Get(paramLimit); raw != "" {
		paginated = true
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return search, false, apperrors.ValidationField(paramLimit, "must be a positive integer")
		}
		search.Limit = limit
	}

	if raw := q.Get(paramCursor); raw != "" {
		paginated = true
		cursor, err := data.DecodeJobCursor(raw)
		if err != nil {
			return search, false, err
		}
		search.Cursor = &cursor
		if search.Limit == 0 {
			search.Limit = defaultLimit
		}
	}

	return search, paginated, nil
}
