package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medibot/medibot-backend/internal/config"
	"github.com/medibot/medibot-backend/internal/health"
	"github.com/medibot/medibot-backend/internal/metrics"
	"github.com/medibot/medibot-backend/internal/usage"
)

const statusMessage = "MediBot Backend is running and ready for API calls!"

// StatusResponse is the root status body.
type StatusResponse struct {
	Status string `json:"status"`
}

// RegisterStatusRoutes registers the status, health, and metrics routes.
func RegisterStatusRoutes(
	router *gin.Engine,
	cfg *config.Config,
	metricsStore *metrics.Store,
	usageRepo *usage.Repository,
) {
	// Root status always reports ready, even without an API key: the frontend
	// uses it only to confirm the backend process is up.
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, StatusResponse{Status: statusMessage})
	})

	router.GET("/health", func(c *gin.Context) {
		// Liveness stays shallow so a down database never restarts the process.
		payload := health.Collect(c.Request.Context(), cfg, usageRepo, false)
		c.JSON(http.StatusOK, payload)
	})

	router.GET("/health/ready", func(c *gin.Context) {
		payload := health.Collect(c.Request.Context(), cfg, usageRepo, true)
		status := http.StatusOK
		if payload.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, payload)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/api/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, metricsStore.Snapshot())
	})
}
