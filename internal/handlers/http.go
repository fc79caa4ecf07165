package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/editgroups/editgroups/internal/api"
)

const healthTimeout = 2 * time.Second

// HTTPHandler handles the endpoints outside of the API
type HTTPHandler struct {
	db     *gorm.DB
	logger logrus.FieldLogger
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(db *gorm.DB, logger logrus.FieldLogger) *HTTPHandler {
	return &HTTPHandler{db: db, logger: logger}
}

// SetupRoutes configures all HTTP routes
func (h *HTTPHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
}

// handleHealth reports whether the database answers
func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.ping(ctx); err != nil {
		h.logger.WithError(err).Warn("Health check failed")
		api.RespondJSON(w, http.StatusServiceUnavailable, api.HealthResponse{Status: "unavailable", Database: "down"})
		return
	}
	api.RespondJSON(w, http.StatusOK, api.HealthResponse{Status: "ok", Database: "up"})
}

func (h *HTTPHandler) ping(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
