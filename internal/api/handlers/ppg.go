package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/tanya-ai-go/internal/middleware"
	"github.com/irfndi/tanya-ai-go/internal/models"
	"github.com/irfndi/tanya-ai-go/internal/ppg"
)

// PPGAnalyzer is satisfied by *ppg.Analyzer.
type PPGAnalyzer interface {
	Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error)
}

type PPGHandler struct {
	analyzer PPGAnalyzer
	logger   *logrus.Logger
}

func NewPPGHandler(analyzer PPGAnalyzer, logger *logrus.Logger) *PPGHandler {
	return &PPGHandler{analyzer: analyzer, logger: logger}
}

// Analyze handles POST /analyze_ppg.
func (h *PPGHandler) Analyze(c *gin.Context) {
	var req models.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	result, err := h.analyzer.Analyze(c.Request.Context(), req)
	if err != nil {
		var aerr *ppg.AnalysisError
		if errors.As(err, &aerr) {
			middleware.RecordError(c, err, "ppg analysis failed")
			c.JSON(aerr.Status, gin.H{"error": aerr.Message})
			return
		}
		h.logger.WithError(err).Error("Unexpected PPG analysis failure")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Signal analysis failed"})
		return
	}

	c.JSON(http.StatusOK, result.ToResponse())
}
