package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/jaqubm/budgetme-backend/utils"
	"go.uber.org/zap"
)

var errDatabaseNotConfigured = errors.New("database not configured")

// DatabaseChecker reports whether the database can serve queries
type DatabaseChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Message  string `json:"message,omitempty"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db     DatabaseChecker
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db DatabaseChecker, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		logger: logger,
	}
}

// HandleHealth handles GET /health.
// Reports database connectivity; 503 when the database is unreachable.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:   "healthy",
		Database: "connected",
		Message:  "Database connection is healthy",
	}
	status := http.StatusOK

	if err := h.checkDatabase(r.Context()); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		response = HealthResponse{
			Status:   "unhealthy",
			Database: "disconnected",
			Message:  "Database connection failed",
		}
		status = http.StatusServiceUnavailable
	}

	if err := utils.WriteJSON(w, status, response); err != nil {
		h.logger.Error("failed to write health response", zap.Error(err))
	}
}

// HandleLiveness handles GET /healthz.
// Always 200 while the process is serving.
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if h.db == nil {
		return errDatabaseNotConfigured
	}
	return h.db.HealthCheck(ctx)
}
