package config

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// BaseURL is the base URL of the service (e.g., "https://jobs.example.com").
	// Used for generating absolute URLs in Location and Link headers.
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	// DefaultPageLimit caps unpaginated listings when a client supplies a
	// cursor without a limit.
	DefaultPageLimit int `env:"HTTP_DEFAULT_PAGE_LIMIT" envDefault:"100"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.Addr == "" {
		h.Addr = ":8080"
	}
	if h.DefaultPageLimit <= 0 {
		h.DefaultPageLimit = 100
	}
}
