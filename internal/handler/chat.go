package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medibot/medibot-backend/internal/gemini"
	"github.com/medibot/medibot-backend/internal/llm"
)

func (h *MediBotHandler) handleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Query == "" {
		badRequest(c, emptyQueryMessage)
		return
	}

	if err := h.guard.EnsureSafe(req.Query); err != nil {
		h.logError(c, "chat", err)
		writeError(c, err, chatErrorMessage)
		return
	}

	system, err := h.prompts.ChatSystem()
	if err != nil {
		h.logError(c, "chat", err)
		writeError(c, err, chatErrorMessage)
		return
	}
	prompt, err := h.prompts.ChatUser(llm.RenderHistory(req.History), req.Query)
	if err != nil {
		h.logError(c, "chat", err)
		writeError(c, err, chatErrorMessage)
		return
	}

	text, err := h.client.Chat(c.Request.Context(), gemini.Request{
		Prompt:       prompt,
		SystemPrompt: system,
	})
	if err != nil {
		h.logError(c, "chat", err)
		writeError(c, err, chatErrorMessage)
		return
	}

	c.JSON(http.StatusOK, TextResponse{Response: text})
}
