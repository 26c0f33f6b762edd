package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"roomwatch-backend/internal/occupancy"
)

type setOccupancyRequest struct {
	Occupied *bool `json:"occupied" binding:"required"`
}

// SetOccupancy overrides the dummy occupancy source. It fails when the
// deployment runs a real camera provider.
func (h *Handler) SetOccupancy(c *gin.Context) {
	dummy, ok := h.provider.(*occupancy.Dummy)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dummy occupancy provider is not active"})
		return
	}

	var req setOccupancyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "occupied is required"})
		return
	}

	dummy.SetOccupied(*req.Occupied)
	c.JSON(http.StatusOK, gin.H{"occupied": *req.Occupied})
}
