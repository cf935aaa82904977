package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medibot/medibot-backend/internal/gemini"
	"github.com/medibot/medibot-backend/internal/llm"
)

func (h *MediBotHandler) handleSummarize(c *gin.Context) {
	var req HistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.History) < minHistoryTurns {
		badRequest(c, shortHistoryMessage)
		return
	}

	historyText := llm.RenderHistory(req.History)
	if err := h.guard.EnsureSafe(historyText); err != nil {
		h.logError(c, "summarize", err)
		writeError(c, err, summarizeErrorMessage)
		return
	}

	system, err := h.prompts.SummarizeSystem()
	if err != nil {
		h.logError(c, "summarize", err)
		writeError(c, err, summarizeErrorMessage)
		return
	}

	text, err := h.client.Chat(c.Request.Context(), gemini.Request{
		Prompt:       historyText,
		SystemPrompt: system,
	})
	if err != nil {
		h.logError(c, "summarize", err)
		writeError(c, err, summarizeErrorMessage)
		return
	}

	c.JSON(http.StatusOK, TextResponse{Response: text})
}
