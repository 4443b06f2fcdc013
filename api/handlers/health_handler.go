package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/toseeq44/automation-fb-sub003/internal/app"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	engine  *app.Engine
	version string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(engine *app.Engine, version string) *HealthHandler {
	return &HealthHandler{
		engine:  engine,
		version: version,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	ActiveRunID string `json:"active_run_id,omitempty"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:  "ok",
		Version: h.version,
	}
	if status, ok := h.engine.Snapshot(); ok {
		response.ActiveRunID = status.RunID
	}
	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
