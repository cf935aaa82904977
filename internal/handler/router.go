package handler

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/medibot/medibot-backend/internal/config"
	"github.com/medibot/medibot-backend/internal/metrics"
	"github.com/medibot/medibot-backend/internal/middleware"
	"github.com/medibot/medibot-backend/internal/usage"
)

// NewRouter builds the HTTP router.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	medibotHandler *MediBotHandler,
	usageHandler *UsageHandler,
	metricsStore *metrics.Store,
	usageRepo *usage.Repository,
) *gin.Engine {
	setGinMode(cfg.Logging.Level)

	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.RequestLogger(logger),
		gin.Recovery(),
		cors.New(newCORSConfig(cfg)),
		newGzipMiddleware(),
	)

	RegisterStatusRoutes(router, cfg, metricsStore, usageRepo)
	medibotHandler.RegisterRoutes(router)
	usageHandler.RegisterRoutes(router)

	return router
}

// newCORSConfig allows any origin by default. The frontend is opened from the
// local filesystem, where the browser sends Origin: null.
func newCORSConfig(cfg *config.Config) cors.Config {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORS.AllowOrigins
	if len(corsConfig.AllowOrigins) == 1 && corsConfig.AllowOrigins[0] == "*" {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader}
	corsConfig.MaxAge = 12 * time.Hour
	return corsConfig
}

func newGzipMiddleware() gin.HandlerFunc {
	return gzip.Gzip(gzip.DefaultCompression, gzip.WithCustomShouldCompressFn(func(c *gin.Context) bool {
		// Probe responses are tiny.
		switch c.Request.URL.Path {
		case "/", "/health", "/health/ready":
			return false
		}
		return true
	}))
}

func setGinMode(level string) {
	if strings.EqualFold(strings.TrimSpace(level), "debug") {
		gin.SetMode(gin.DebugMode)
		return
	}
	gin.SetMode(gin.ReleaseMode)
}
