package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medibot/medibot-backend/internal/config"
	"github.com/medibot/medibot-backend/internal/usage"
)

const usageErrorMessage = "Usage data is currently unavailable."

// DailyUsageResponse is the per-day usage body.
type DailyUsageResponse struct {
	UsageDate    string `json:"usage_date"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
	TotalTokens  int64  `json:"total_tokens"`
	RequestCount int64  `json:"request_count"`
	Model        string `json:"model"`
}

// UsageHandler serves token usage accounting endpoints. Routes are only
// registered when the usage database is enabled.
type UsageHandler struct {
	cfg    *config.Config
	repo   *usage.Repository
	logger *slog.Logger
}

// NewUsageHandler creates the usage handler. Returns nil when the repository
// is absent so the router can skip registration.
func NewUsageHandler(cfg *config.Config, repo *usage.Repository, logger *slog.Logger) *UsageHandler {
	if repo == nil {
		return nil
	}
	return &UsageHandler{
		cfg:    cfg,
		repo:   repo,
		logger: logger,
	}
}

// RegisterRoutes registers the usage routes.
func (h *UsageHandler) RegisterRoutes(router *gin.Engine) {
	if h == nil {
		return
	}
	group := router.Group("/api/usage")
	group.GET("/daily", h.handleDaily)
	group.GET("/total", h.handleTotal)
}

func (h *UsageHandler) handleDaily(c *gin.Context) {
	row, err := h.repo.GetDailyUsage(c.Request.Context(), time.Time{})
	if err != nil {
		h.logError(err)
		writeError(c, err, usageErrorMessage)
		return
	}

	c.JSON(http.StatusOK, h.buildDailyResponse(row))
}

func (h *UsageHandler) handleTotal(c *gin.Context) {
	days, ok := parseDays(c, 30)
	if !ok {
		return
	}

	row, err := h.repo.GetTotalUsage(c.Request.Context(), days)
	if err != nil {
		h.logError(err)
		writeError(c, err, usageErrorMessage)
		return
	}

	c.JSON(http.StatusOK, DailyUsageResponse{
		UsageDate:    row.UsageDate.Format("2006-01-02"),
		InputTokens:  row.InputTokens,
		OutputTokens: row.OutputTokens,
		TotalTokens:  row.TotalTokens(),
		RequestCount: row.RequestCount,
		Model:        h.cfg.Gemini.Model,
	})
}

func (h *UsageHandler) buildDailyResponse(row *usage.DailyUsage) DailyUsageResponse {
	if row == nil {
		return DailyUsageResponse{
			UsageDate: time.Now().Format("2006-01-02"),
			Model:     h.cfg.Gemini.Model,
		}
	}

	return DailyUsageResponse{
		UsageDate:    row.UsageDate.Format("2006-01-02"),
		InputTokens:  row.InputTokens,
		OutputTokens: row.OutputTokens,
		TotalTokens:  row.TotalTokens(),
		RequestCount: row.RequestCount,
		Model:        h.cfg.Gemini.Model,
	}
}

func parseDays(c *gin.Context, defaultDays int) (int, bool) {
	raw := c.Query("days")
	if raw == "" {
		return defaultDays, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		badRequest(c, "days must be a positive integer")
		return 0, false
	}
	return parsed, true
}

func (h *UsageHandler) logError(err error) {
	if err == nil || h.logger == nil {
		return
	}
	h.logger.Warn("usage_request_failed", "err", err)
}
