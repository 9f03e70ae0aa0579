// Package httpx provides the HTTP surface of the job bookkeeping service.
package httpx

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/jobkeeper/jobkeeper/internal/domain/model"
	apperrors "github.com/jobkeeper/jobkeeper/internal/errors"
	"github.com/jobkeeper/jobkeeper/internal/service"
)

// JobHandlers provides the tenant-facing job endpoints. Every request is
// scoped to the service and user named by the proxy identity headers.
type JobHandlers struct {
	Svc          *service.JobService
	BaseURL      string
	DefaultLimit int
}

// requireIdentity extracts the tenant identity or writes a 401.
func requireIdentity(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	id := identityFromRequest(r)
	if id.Service == "" || id.User == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "identity_required",
			Err:     errors.New("request is missing its identity headers"),
		})
		return Identity{}, false
	}
	return id, true
}

// parseJobID reads the {id} path segment.
func parseJobID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, ErrorParams{
			Code:    http.StatusNotFound,
			ErrCode: "not_found",
			Err:     fmt.Errorf("no job with id %q", raw),
		})
		return 0, false
	}
	return id, true
}

// CreateJob handles POST /jobs.
func (h *JobHandlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req model.CreateJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.Svc.Create(r.Context(), identity.Service, identity.User, &req)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("%s/jobs/%d", strings.TrimSuffix(h.BaseURL, "/"), job.ID))
	WriteJSON(w, http.StatusCreated, job)
}

// ListJobs handles GET /jobs.
func (h *JobHandlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	search, paginated, err := parseJobSearch(r, h.DefaultLimit)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	list, err := h.Svc.List(r.Context(), identity.Service, identity.User, search)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	if paginated {
		writePaginationLinks(w, r, h.BaseURL, list)
	}
	WriteJSON(w, http.StatusOK, list.Entries)
}

// GetJob handles GET /jobs/{id}.
func (h *JobHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	jobID, ok := parseJobID(w, r)
	if !ok {
		return
	}

	job, err := h.Svc.Get(r.Context(), model.JobIdentifier{
		Service: identity.Service,
		ID:      jobID,
		Owner:   identity.User,
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// DeleteJob handles DELETE /jobs/{id}.
func (h *JobHandlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	jobID, ok := parseJobID(w, r)
	if !ok {
		return
	}

	err := h.Svc.Delete(r.Context(), model.JobIdentifier{
		Service: identity.Service,
		ID:      jobID,
		Owner:   identity.User,
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateJob handles PATCH /jobs/{id}. The body selects one of the closed set
// of mutations by its phase field; a body without a phase updates metadata.
func (h *JobHandlers) UpdateJob(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	jobID, ok := parseJobID(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_body", Err: err})
		return
	}

	update, err := model.ParseJobUpdate(body)
	if err != nil {
		WriteServiceError(w, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid job update"))
		return
	}

	job, err := h.Svc.Update(r.Context(), model.JobIdentifier{
		Service: identity.Service,
		ID:      jobID,
		Owner:   identity.User,
	}, update)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, job)
}
