package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"roomwatch-backend/internal/model"
	"roomwatch-backend/internal/store"
)

type createReservationRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	RoomID    string `json:"room_id"`
	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`
}

// CreateReservation validates the booking policy and delegates to the
// conflict engine. Policy violations come back as 400, bans as 403, and
// buffer conflicts as 409.
func (h *Handler) CreateReservation(c *gin.Context) {
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id, start_time and end_time are required"})
		return
	}

	now := h.clock.Now()

	summary, err := h.penalties.Summary(c.Request.Context(), req.UserID, now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check penalty standing"})
		return
	}
	if summary.IsBanned {
		c.JSON(http.StatusForbidden, gin.H{
			"error":       "user is banned",
			"points":      summary.Points,
			"threshold":   summary.Threshold,
			"ban_until":   summary.BanUntil,
			"window_days": summary.WindowDays,
		})
		return
	}

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_time must be RFC3339"})
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_time must be RFC3339"})
		return
	}

	if !end.After(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_time must be after start_time"})
		return
	}
	if start.Before(now) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot reserve in the past"})
		return
	}

	duration := end.Sub(start)
	if duration < time.Duration(h.policy.MinMinutes)*time.Minute {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("reservation must be at least %d minutes", h.policy.MinMinutes)})
		return
	}
	if duration > time.Duration(h.policy.MaxMinutes)*time.Minute {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("reservation must be at most %d minutes", h.policy.MaxMinutes)})
		return
	}
	if start.After(now.AddDate(0, 0, h.policy.MaxDaysAhead)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("reservations are only accepted up to %d days ahead", h.policy.MaxDaysAhead)})
		return
	}

	roomID := req.RoomID
	if roomID == "" {
		roomID = h.roomID
	}

	res, err := h.store.CreateReservation(c.Request.Context(), roomID, req.UserID, start, end)
	switch {
	case errors.Is(err, store.ErrInvalidRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_time must be after start_time"})
		return
	case errors.Is(err, store.ErrOverlap):
		c.JSON(http.StatusConflict, gin.H{"error": "reservation conflicts with an existing booking"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create reservation"})
		return
	}

	c.JSON(http.StatusCreated, res)
}

// ListReservations returns the room's reservations, optionally filtered
// by user_id and by the calendar date (UTC) of the start time.
func (h *Handler) ListReservations(c *gin.Context) {
	roomID := c.DefaultQuery("room_id", h.roomID)
	userID := c.Query("user_id")
	dateStr := c.Query("date")

	var targetDate time.Time
	filterDate := dateStr != ""
	if filterDate {
		var err error
		targetDate, err = time.Parse("2006-01-02", dateStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
	}

	all, err := h.store.ListReservations(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list reservations"})
		return
	}

	result := make([]model.Reservation, 0, len(all))
	for _, r := range all {
		if userID != "" && r.UserID != userID {
			continue
		}
		if filterDate {
			y1, m1, d1 := r.StartTime.UTC().Date()
			y2, m2, d2 := targetDate.Date()
			if y1 != y2 || m1 != m2 || d1 != d2 {
				continue
			}
		}
		result = append(result, r)
	}

	c.JSON(http.StatusOK, result)
}

// CancelReservation cancels by id. An unknown or already-settled
// reservation reports not found rather than failing.
func (h *Handler) CancelReservation(c *gin.Context) {
	id := c.Param("id")

	changed, err := h.store.CancelReservation(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel reservation"})
		return
	}
	if !changed {
		c.JSON(http.StatusNotFound, gin.H{"error": "reservation not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cancelled", "reservation_id": id})
}
