package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"laundry-booking-backend/config"
	"laundry-booking-backend/internal/mw"
)

// NewResponseCache creates the store behind the GET response cache.
func NewResponseCache(cfg *config.ServerConfig) *cache.Cache {
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	return cache.New(ttl, 2*ttl)
}

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg *config.ServerConfig, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(mw.Logger(log), mw.Recovery(log))

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := h.cache
	if cacheStore == nil {
		cacheStore = NewResponseCache(cfg)
	}
	caching := mw.Cache(cacheStore, ttl)

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	api.Use(rateLimiter, mw.InvalidateOnWrite(cacheStore))
	{
		api.GET("/machines", caching, h.ListMachines)
		api.GET("/capacity", caching, h.GetCapacity)
		api.GET("/workload", caching, h.GetWorkload)
		api.GET("/slots", caching, h.GetFreeSlots)
		api.GET("/slots/machines", caching, h.GetFreeMachines)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)

		api.POST("/residents/bind", h.BindResident)

		me := api.Group("", h.requesters.Required())
		me.POST("/reservations", h.CreateReservation)
		me.GET("/reservations", h.ListReservations)
		me.DELETE("/reservations/:id", h.CancelReservation)
		me.POST("/reservations/:id/confirm", h.ConfirmReservation)
		me.PUT("/residents/me/language", h.SetLanguage)
		me.POST("/reports", h.CreateReport)
		me.PUT("/subscriptions", h.PutSubscription)
		me.DELETE("/subscriptions", h.DeleteSubscription)

		admin := api.Group("/admin", mw.AdminToken(cfg.AdminToken))
		admin.PUT("/machines/:id/status", h.SetMachineStatus)
		admin.POST("/sweep", h.TriggerSweep)
	}

	return r
}
