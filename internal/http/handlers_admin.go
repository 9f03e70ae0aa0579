package httpx

import (
	"net/http"

	"github.com/jobkeeper/jobkeeper/internal/domain/model"
	"github.com/jobkeeper/jobkeeper/internal/service"
)

// AdminHandlers provides the read-only operator endpoints. These are not
// owner-scoped; the deployment is expected to restrict who can reach them.
type AdminHandlers struct {
	Svc          *service.JobService
	BaseURL      string
	DefaultLimit int
}

// ListServices handles GET /admin/services.
func (h *AdminHandlers) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.Svc.ListServices(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if services == nil {
		services = []string{}
	}
	WriteJSON(w, http.StatusOK, map[string][]string{"services": services})
}

// ListUsers handles GET /admin/services/{service}/users.
func (h *AdminHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Svc.ListUsers(r.Context(), r.PathValue("service"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if users == nil {
		users = []string{}
	}
	WriteJSON(w, http.StatusOK, map[string][]string{"users": users})
}

// ListUserJobs handles GET /admin/services/{service}/users/{user}/jobs.
func (h *AdminHandlers) ListUserJobs(w http.ResponseWriter, r *http.Request) {
	search, paginated, err := parseJobSearch(r, h.DefaultLimit)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	list, err := h.Svc.List(r.Context(), r.PathValue("service"), r.PathValue("user"), search)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	if paginated {
		writePaginationLinks(w, r, h.BaseURL, list)
	}
	WriteJSON(w, http.StatusOK, list.Entries)
}

// GetJob handles GET /admin/services/{service}/jobs/{id}. Unlike the tenant
// endpoint it carries no owner restriction.
func (h *AdminHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := parseJobID(w, r)
	if !ok {
		return
	}

	job, err := h.Svc.Get(r.Context(), model.JobIdentifier{
		Service: r.PathValue("service"),
		ID:      jobID,
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, job)
}
