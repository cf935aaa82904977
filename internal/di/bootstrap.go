package di

import (
	"fmt"
	"time"

	"github.com/medibot/medibot-backend/internal/config"
	"github.com/medibot/medibot-backend/internal/domain/medibot"
	"github.com/medibot/medibot-backend/internal/gemini"
	"github.com/medibot/medibot-backend/internal/guard"
	"github.com/medibot/medibot-backend/internal/handler"
	"github.com/medibot/medibot-backend/internal/logging"
	"github.com/medibot/medibot-backend/internal/metrics"
	"github.com/medibot/medibot-backend/internal/server"
	"github.com/medibot/medibot-backend/internal/usage"
)

// InitializeApp wires the application dependencies.
func InitializeApp() (*App, error) {
	cfg, err := config.ProvideConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	metricsStore := metrics.NewStore()

	var usageRepository *usage.Repository
	var usageRecorder *usage.Recorder
	if cfg.Database.Enabled {
		usageRepository = usage.NewRepository(cfg, logger)
		usageRecorder = usage.NewRecorder(
			usageRepository,
			time.Duration(cfg.Database.FlushIntervalSeconds)*time.Second,
			time.Duration(cfg.Database.FlushMaxBackoffSeconds)*time.Second,
			cfg.Database.FlushMaxPendingRecords,
			logger,
		)
	}

	geminiClient, err := gemini.NewClient(cfg, metricsStore, usageRecorder)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	injectionGuard, err := guard.NewGuard(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("guard: %w", err)
	}

	prompts, err := medibot.NewPrompts()
	if err != nil {
		return nil, fmt.Errorf("medibot prompts: %w", err)
	}

	medibotHandler := handler.NewMediBotHandler(cfg, geminiClient, injectionGuard, prompts, logger)
	usageHandler := handler.NewUsageHandler(cfg, usageRepository, logger)

	router := handler.NewRouter(cfg, logger, medibotHandler, usageHandler, metricsStore, usageRepository)
	httpServer := server.NewHTTPServer(cfg, router)

	return NewApp(httpServer, logger, cfg, usageRepository, usageRecorder), nil
}
