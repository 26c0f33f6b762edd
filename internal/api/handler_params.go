package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetStateParams returns the engine's current timing parameters.
func (h *Handler) GetStateParams(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Params())
}

type setStateParamsRequest struct {
	GracePeriodSec         *int `json:"grace_period_sec"`
	ArrivalWindowBeforeSec *int `json:"arrival_window_before_sec"`
	ArrivalWindowAfterSec  *int `json:"arrival_window_after_sec"`
	CleanupMarginSec       *int `json:"cleanup_margin_sec"`
}

// SetStateParams overwrites only the parameters present in the request
// body and returns the resulting configuration.
func (h *Handler) SetStateParams(c *gin.Context) {
	var req setStateParamsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	params := h.engine.Params()
	if req.GracePeriodSec != nil {
		params.GracePeriodSec = *req.GracePeriodSec
	}
	if req.ArrivalWindowBeforeSec != nil {
		params.ArrivalWindowBeforeSec = *req.ArrivalWindowBeforeSec
	}
	if req.ArrivalWindowAfterSec != nil {
		params.ArrivalWindowAfterSec = *req.ArrivalWindowAfterSec
	}
	if req.CleanupMarginSec != nil {
		params.CleanupMarginSec = *req.CleanupMarginSec
	}
	h.engine.SetParams(params)

	c.JSON(http.StatusOK, h.engine.Params())
}
