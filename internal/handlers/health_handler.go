package handlers

import (
	"net/http"

	"github.com/rbutdayev/xpos-sub008/internal/database"
	"github.com/rbutdayev/xpos-sub008/internal/models"

	"github.com/gin-gonic/gin"
)

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status   string                    `json:"status"`
	Service  string                    `json:"service"`
	Version  string                    `json:"version"`
	Database *database.HealthStatus    `json:"database,omitempty"`
	Sync     models.SyncStatusSnapshot `json:"sync"`
}

// HealthHandler reports process health. The backend being offline is not
// unhealthy for a kiosk; a broken local database is.
type HealthHandler struct {
	db      HealthChecker
	sync    SyncController
	version string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db HealthChecker, sync SyncController, version string) *HealthHandler {
	return &HealthHandler{db: db, sync: sync, version: version}
}

// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:  "healthy",
		Service: "kiosk-sync",
		Version: h.version,
		Sync:    h.sync.GetSyncStatus(),
	}

	if h.db != nil {
		status := h.db.HealthCheck(c.Request.Context())
		response.Database = &status
		if !status.Healthy {
			response.Status = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, response)
			return
		}
	}

	c.JSON(http.StatusOK, response)
}
