package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medibot/medibot-backend/internal/domain/medibot"
	"github.com/medibot/medibot-backend/internal/gemini"
	"github.com/medibot/medibot-backend/internal/llm"
)

func (h *MediBotHandler) handleAnalyze(c *gin.Context) {
	var req HistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.History) < minHistoryTurns {
		badRequest(c, shortSymptomMessage)
		return
	}

	historyText := llm.RenderHistory(req.History)
	if err := h.guard.EnsureSafe(historyText); err != nil {
		h.logError(c, "analyze", err)
		writeError(c, err, analyzeErrorMessage)
		return
	}

	system, err := h.prompts.AnalyzeSystem()
	if err != nil {
		h.logError(c, "analyze", err)
		writeError(c, err, analyzeErrorMessage)
		return
	}

	payload, err := h.client.Structured(c.Request.Context(), gemini.Request{
		Prompt:       historyText,
		SystemPrompt: system,
	}, medibot.AnalysisSchema())
	if err != nil {
		h.logError(c, "analyze", err)
		writeError(c, err, analyzeErrorMessage)
		return
	}

	result, err := medibot.DecodeAnalysis(payload)
	if err != nil {
		h.logError(c, "analyze", err)
		writeError(c, err, analyzeErrorMessage)
		return
	}

	c.JSON(http.StatusOK, AnalysisResponse{Analysis: result})
}
