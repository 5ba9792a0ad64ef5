package handlers

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ecs-alert/ecs-alert/internal/api"
	"github.com/ecs-alert/ecs-alert/internal/database"
	"github.com/ecs-alert/ecs-alert/internal/middleware"
)

// AlertReader is the read side of the alert store
type AlertReader interface {
	SelectPending(ctx context.Context) ([]database.Alert, error)
	SelectNotified(ctx context.Context) ([]database.Alert, error)
	SelectAll(ctx context.Context) ([]database.Alert, error)
	Counts(ctx context.Context) (*database.AlertCounts, error)
}

// AlertsHandler exposes stored alerts read-only
type AlertsHandler struct {
	store  AlertReader
	logger logrus.FieldLogger
}

func NewAlertsHandler(store AlertReader, logger logrus.FieldLogger) *AlertsHandler {
	return &AlertsHandler{store: store, logger: logger}
}

func (h *AlertsHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/alerts", h.handleList)
	mux.HandleFunc("/api/alerts/stats", h.handleStats)
}

// handleList handles GET /api/alerts?state=all|pending|notified
func (h *AlertsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.MethodNotAllowed(w, http.MethodGet)
		return
	}

	var selectFn func(context.Context) ([]database.Alert, error)
	switch state := r.URL.Query().Get("state"); state {
	case "", "all":
		selectFn = h.store.SelectAll
	case string(database.StatePending):
		selectFn = h.store.SelectPending
	case string(database.StateNotified):
		selectFn = h.store.SelectNotified
	default:
		api.RespondErrorWithCode(w, http.StatusBadRequest, "invalid_state", "state must be one of all, pending, notified")
		return
	}

	rows, err := selectFn(r.Context())
	if err != nil {
		h.logger.WithError(err).WithField("request_id", middleware.GetRequestID(r.Context())).Error("Failed to list alerts")
		api.RespondError(w, http.StatusInternalServerError, "Failed to list alerts")
		return
	}
	api.RespondJSON(w, http.StatusOK, rows)
}

// handleStats handles GET /api/alerts/stats
func (h *AlertsHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.MethodNotAllowed(w, http.MethodGet)
		return
	}

	counts, err := h.store.Counts(r.Context())
	if err != nil {
		h.logger.WithError(err).WithField("request_id", middleware.GetRequestID(r.Context())).Error("Failed to count alerts")
		api.RespondError(w, http.StatusInternalServerError, "Failed to count alerts")
		return
	}
	api.RespondJSON(w, http.StatusOK, counts)
}
