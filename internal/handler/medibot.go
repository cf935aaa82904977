package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/medibot/medibot-backend/internal/config"
	"github.com/medibot/medibot-backend/internal/domain/medibot"
	"github.com/medibot/medibot-backend/internal/gemini"
	"github.com/medibot/medibot-backend/internal/guard"
	"github.com/medibot/medibot-backend/internal/llm"
	"github.com/medibot/medibot-backend/internal/middleware"
)

// Validation messages, matched by the frontend.
const (
	emptyQueryMessage   = "Please provide a query."
	shortHistoryMessage = "Not enough conversation history to summarize."
	shortSymptomMessage = "Not enough symptom data in history for analysis."
)

// Generic server-error messages per route. Upstream detail stays in the logs.
const (
	chatErrorMessage      = "An internal server error occurred while processing the AI request."
	summarizeErrorMessage = "An internal server error occurred during summarization."
	analyzeErrorMessage   = "An internal server error occurred during symptom analysis."
)

// Summarize and analyze need at least one user/bot exchange to work with.
const minHistoryTurns = 2

// ChatRequest is the chat request body.
type ChatRequest struct {
	Query   string         `json:"query"`
	History []llm.ChatTurn `json:"history"`
}

// HistoryRequest is the request body for summarize and analyze.
type HistoryRequest struct {
	History []llm.ChatTurn `json:"history"`
}

// AnalysisResponse is the success body for analyze.
type AnalysisResponse struct {
	Analysis medibot.AnalysisResult `json:"analysis"`
}

// MediBotHandler serves the three MediBot features.
type MediBotHandler struct {
	cfg     *config.Config
	client  gemini.LLM
	guard   *guard.InjectionGuard
	prompts *medibot.Prompts
	logger  *slog.Logger
}

// NewMediBotHandler creates the handler.
func NewMediBotHandler(
	cfg *config.Config,
	client gemini.LLM,
	injectionGuard *guard.InjectionGuard,
	prompts *medibot.Prompts,
	logger *slog.Logger,
) *MediBotHandler {
	return &MediBotHandler{
		cfg:     cfg,
		client:  client,
		guard:   injectionGuard,
		prompts: prompts,
		logger:  logger,
	}
}

// RegisterRoutes registers the MediBot API routes.
func (h *MediBotHandler) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/api")
	group.POST("/chat", h.handleChat)
	group.POST("/summarize", h.handleSummarize)
	group.POST("/analyze", h.handleAnalyze)
}

func (h *MediBotHandler) logError(c *gin.Context, route string, err error) {
	if h.logger == nil {
		return
	}
	h.logger.Error("medibot_request_failed",
		"route", route,
		"request_id", middleware.GetRequestID(c),
		"err", err,
	)
}
