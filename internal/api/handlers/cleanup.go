package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CleanupRunner is satisfied by *services.CleanupService.
type CleanupRunner interface {
	RunCleanup(ctx context.Context) (int64, error)
}

// CleanupHandler lets an operator enforce the injury report retention
// window without waiting for the next scheduled run.
type CleanupHandler struct {
	cleanup CleanupRunner
}

func NewCleanupHandler(cleanup CleanupRunner) *CleanupHandler {
	return &CleanupHandler{cleanup: cleanup}
}

type CleanupResponse struct {
	Message string `json:"message"`
	Deleted int64  `json:"deleted"`
}

// TriggerCleanup handles POST /api/v1/admin/cleanup.
func (h *CleanupHandler) TriggerCleanup(c *gin.Context) {
	deleted, err := h.cleanup.RunCleanup(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to run cleanup"})
		return
	}
	c.JSON(http.StatusOK, CleanupResponse{Message: "Cleanup completed", Deleted: deleted})
}
