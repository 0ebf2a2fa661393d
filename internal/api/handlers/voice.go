package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/tanya-ai-go/internal/livekit"
)

// CallAnswerer is satisfied by *assistant.VoiceGateway.
type CallAnswerer interface {
	Answer(ctx context.Context, caller string) ([]byte, error)
}

// RoomTokenIssuer is satisfied by *livekit.Service.
type RoomTokenIssuer interface {
	Token(ctx context.Context, req livekit.TokenRequest) (token string, room string, err error)
}

type VoiceHandler struct {
	calls  CallAnswerer
	tokens RoomTokenIssuer
	logger *logrus.Logger
}

func NewVoiceHandler(calls CallAnswerer, tokens RoomTokenIssuer, logger *logrus.Logger) *VoiceHandler {
	return &VoiceHandler{calls: calls, tokens: tokens, logger: logger}
}

// IncomingCall handles the Twilio voice webhook.
func (h *VoiceHandler) IncomingCall(c *gin.Context) {
	twiml, err := h.calls.Answer(c.Request.Context(), c.PostForm("From"))
	if err != nil {
		h.logger.WithError(err).Error("Failed to render call TwiML")
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, twimlContentType, twiml)
}

// GetToken returns a LiveKit access token as plain text.
func (h *VoiceHandler) GetToken(c *gin.Context) {
	token, _, err := h.tokens.Token(c.Request.Context(), livekit.TokenRequest{
		Name:     c.Query("name"),
		Language: c.Query("language"),
		Room:     c.Query("room"),
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to issue LiveKit token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create access token"})
		return
	}
	c.String(http.StatusOK, token)
}
