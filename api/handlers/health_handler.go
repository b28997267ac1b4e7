package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AbdoElsaed/ufd/internal/app"
)

// HealthHandler reports daemon liveness and readiness
type HealthHandler struct {
	router *app.MessageRouter
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(router *app.MessageRouter) *HealthHandler {
	return &HealthHandler{router: router}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ready",
		"active_channels": h.router.ActiveChannels(),
	})
}
