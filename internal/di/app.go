package di

import (
	"log/slog"
	"net/http"

	"github.com/medibot/medibot-backend/internal/config"
	"github.com/medibot/medibot-backend/internal/usage"
)

// App bundles the application components.
type App struct {
	Server          *http.Server
	Logger          *slog.Logger
	Config          *config.Config
	UsageRepository *usage.Repository
	UsageRecorder   *usage.Recorder
}

// NewApp creates an App instance.
func NewApp(
	server *http.Server,
	logger *slog.Logger,
	cfg *config.Config,
	usageRepository *usage.Repository,
	usageRecorder *usage.Recorder,
) *App {
	return &App{
		Server:          server,
		Logger:          logger,
		Config:          cfg,
		UsageRepository: usageRepository,
		UsageRecorder:   usageRecorder,
	}
}

// Close releases app resources. The recorder is closed before the repository
// so the final flush still has a connection.
func (a *App) Close() {
	if a.UsageRecorder != nil {
		a.UsageRecorder.Close()
	}
	if a.UsageRepository != nil {
		a.UsageRepository.Close()
	}
}
