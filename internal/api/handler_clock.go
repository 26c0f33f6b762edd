package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"roomwatch-backend/internal/clock"
)

// GetClock returns the virtual clock's mode, scale and anchor.
func (h *Handler) GetClock(c *gin.Context) {
	c.JSON(http.StatusOK, h.clock.Status())
}

type setClockRequest struct {
	Mode  string  `json:"mode" binding:"required"`
	Now   string  `json:"now"`
	Scale float64 `json:"scale"`
}

// SetClock switches the clock between real and simulated time. In
// simulated mode an explicit "now" may be given; otherwise the
// simulation anchors at the current instant.
func (h *Handler) SetClock(c *gin.Context) {
	var req setClockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode is required"})
		return
	}

	switch req.Mode {
	case "real":
		h.clock.ClearSimulated()
		c.JSON(http.StatusOK, h.clock.Status())

	case "simulated":
		scale := req.Scale
		if scale == 0 {
			scale = 1
		}

		simNow := h.clock.Now()
		if req.Now != "" {
			parsed, err := time.Parse(time.RFC3339, req.Now)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "now must be RFC3339"})
				return
			}
			simNow = parsed
		}

		if err := h.clock.SetSimulated(simNow, scale); err != nil {
			if errors.Is(err, clock.ErrInvalidScale) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "scale must be positive"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to configure clock"})
			return
		}
		c.JSON(http.StatusOK, h.clock.Status())

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be 'real' or 'simulated'"})
	}
}
