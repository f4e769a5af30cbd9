package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AtRiskMedia/spabook-go/internal/application/services"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/logging"
)

// HealthHandlers serves the backend health endpoints
type HealthHandlers struct {
	healthService *services.HealthService
	timeout       time.Duration
	logger        *logging.ChanneledLogger
}

// NewHealthHandlers creates health handlers with injected dependencies
func NewHealthHandlers(healthService *services.HealthService, timeout time.Duration, logger *logging.ChanneledLogger) *HealthHandlers {
	return &HealthHandlers{
		healthService: healthService,
		timeout:       timeout,
		logger:        logger,
	}
}

// GetServerHealth handles GET /api/v1/health/server
func (h *HealthHandlers) GetServerHealth(c *gin.Context) {
	c.JSON(http.StatusOK, h.healthService.Server())
}

// GetDatabaseHealth handles GET /api/v1/health/database
func (h *HealthHandlers) GetDatabaseHealth(c *gin.Context) {
	health, err := h.healthService.Database(c.Request.Context(), h.timeout)
	if err != nil {
		h.logger.Health().Warn("Reporting database as unavailable", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Database unavailable",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, health)
}
