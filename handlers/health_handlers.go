package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler serves liveness probes.
type HealthHandler struct {
	stage string
}

// NewHealthHandler creates a health handler reporting the running stage.
func NewHealthHandler(stage string) *HealthHandler {
	return &HealthHandler{stage: stage}
}

// GetHealth returns service liveness
// @Summary Health check
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *HealthHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"stage":  h.stage,
	})
}
