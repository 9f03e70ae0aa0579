package httpx

import (
	"log/slog"
	"net/http"

	"github.com/jobkeeper/jobkeeper/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Jobs *service.JobService
	// BaseURL is used when generating Location and Link headers.
	BaseURL string
	// DefaultPageLimit applies when a cursor arrives without a limit.
	DefaultPageLimit int
	Logger           *slog.Logger // optional
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	jobHandlers := &JobHandlers{
		Svc:          services.Jobs,
		BaseURL:      services.BaseURL,
		DefaultLimit: services.DefaultPageLimit,
	}
	adminHandlers := &AdminHandlers{
		Svc:          services.Jobs,
		BaseURL:      services.BaseURL,
		DefaultLimit: services.DefaultPageLimit,
	}

	mux.Handle("POST /jobs", http.HandlerFunc(jobHandlers.CreateJob))
	mux.Handle("GET /jobs", http.HandlerFunc(jobHandlers.ListJobs))
	mux.Handle("GET /jobs/{id}", http.HandlerFunc(jobHandlers.GetJob))
	mux.Handle("DELETE /jobs/{id}", http.HandlerFunc(jobHandlers.DeleteJob))
	mux.Handle("PATCH /jobs/{id}", http.HandlerFunc(jobHandlers.UpdateJob))

	mux.Handle("GET /admin/services", http.HandlerFunc(adminHandlers.ListServices))
	mux.Handle("GET /admin/services/{service}/users", http.HandlerFunc(adminHandlers.ListUsers))
	mux.Handle("GET /admin/services/{service}/users/{user}/jobs", http.HandlerFunc(adminHandlers.ListUserJobs))
	mux.Handle("GET /admin/services/{service}/jobs/{id}", http.HandlerFunc(adminHandlers.GetJob))

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("GET /availability", &AvailabilityHandler{Svc: services.Jobs})

	return mux
}
