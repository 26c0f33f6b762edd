package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetRoomStatus returns the latest snapshot published by the engine.
func (h *Handler) GetRoomStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Snapshot())
}
