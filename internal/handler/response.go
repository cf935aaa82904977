package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medibot/medibot-backend/internal/httperror"
)

// TextResponse is the success body for chat and summarize, and the envelope
// for every error message.
type TextResponse struct {
	Response string `json:"response"`
}

// writeError maps a processing failure onto the wire envelope. The fallback
// message is the route's generic server-error text.
func writeError(c *gin.Context, err error, fallback string) {
	status, payload := httperror.Response(err, fallback)
	c.JSON(status, payload)
}

// badRequest writes a 400 with the route's exact validation message.
func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, TextResponse{Response: message})
}
