package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ecs-alert/ecs-alert/internal/api"
)

// Pinger reports whether the alert store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HTTPHandler serves the unauthenticated health probe
type HTTPHandler struct {
	version string
	db      Pinger
}

func NewHTTPHandler(version string, db Pinger) *HTTPHandler {
	return &HTTPHandler{version: version, db: db}
}

// SetupRoutes configures all HTTP routes
func (h *HTTPHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
}

// handleHealth reports ok, or 503 when the database does not answer a ping
func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.MethodNotAllowed(w, http.MethodGet)
		return
	}

	status, database := http.StatusOK, "ok"
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			status, database = http.StatusServiceUnavailable, "unreachable"
		}
	}

	api.RespondJSON(w, status, map[string]string{
		"status":   http.StatusText(status),
		"version":  h.version,
		"database": database,
	})
}
