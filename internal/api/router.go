package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"roomwatch-backend/config"
	"roomwatch-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg *config.ServerConfig) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	r.GET("/ping", func(c *gin.Context) {
		c.String(200, "pong")
	})
	r.GET("/", h.GetRoomStatus)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/room_status", h.GetRoomStatus)

		api.GET("/reservations", h.ListReservations)
		api.POST("/reservations", h.CreateReservation)
		api.DELETE("/reservations/:id", h.CancelReservation)

		api.GET("/penalties/:user_id", h.GetPenaltySummary)
		api.POST("/penalties/:user_id/reset", h.ResetPenalties)

		api.GET("/state_params", h.GetStateParams)
		api.POST("/state_params", h.SetStateParams)

		api.GET("/clock", h.GetClock)
		api.POST("/clock", h.SetClock)

		api.POST("/occupancy", h.SetOccupancy)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", caching, h.GetVAPIDPublicKey)
	}

	return r
}
