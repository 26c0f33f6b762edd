package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetPenaltySummary returns the user's rolling-window standing.
func (h *Handler) GetPenaltySummary(c *gin.Context) {
	userID := c.Param("user_id")

	summary, err := h.penalties.Summary(c.Request.Context(), userID, h.clock.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute penalty summary"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// ResetPenalties discards all of the user's penalty records.
// Administrative override.
func (h *Handler) ResetPenalties(c *gin.Context) {
	userID := c.Param("user_id")

	if err := h.penalties.Reset(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset penalties"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userID, "reset": true})
}
