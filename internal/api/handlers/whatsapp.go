package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/tanya-ai-go/internal/assistant"
	"github.com/irfndi/tanya-ai-go/internal/session"
)

const twimlContentType = "text/xml"

// MessageBridge is satisfied by *assistant.Bridge.
type MessageBridge interface {
	Handle(ctx context.Context, msg assistant.IncomingMessage) string
}

type WhatsAppHandler struct {
	bridge MessageBridge
	store  session.Store
	logger *logrus.Logger
	now    func() time.Time
}

func NewWhatsAppHandler(bridge MessageBridge, store session.Store, logger *logrus.Logger) *WhatsAppHandler {
	return &WhatsAppHandler{bridge: bridge, store: store, logger: logger, now: time.Now}
}

// Webhook handles the Twilio WhatsApp callback and always answers with TwiML.
func (h *WhatsAppHandler) Webhook(c *gin.Context) {
	msg := assistant.IncomingMessage{
		Body:             c.PostForm("Body"),
		From:             c.PostForm("From"),
		MediaURL:         c.PostForm("MediaUrl0"),
		MediaContentType: c.PostForm("MediaContentType0"),
	}

	reply := h.bridge.Handle(c.Request.Context(), msg)
	body, err := assistant.MessageTwiML(reply)
	if err != nil {
		h.logger.WithError(err).Error("Failed to render TwiML reply")
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, twimlContentType, body)
}

// InjuryStats handles GET /injury-stats.
func (h *WhatsAppHandler) InjuryStats(c *gin.Context) {
	stats, err := session.InjuryStats(c.Request.Context(), h.store, h.now())
	if err != nil {
		h.logger.WithError(err).Error("Failed to compute injury stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute injury statistics"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
