package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"laundry-booking-backend/internal/booking"
	"laundry-booking-backend/internal/model"
	"laundry-booking-backend/internal/mw"
	"laundry-booking-backend/internal/notification"
	"laundry-booking-backend/internal/schedule"
	"laundry-booking-backend/internal/store"
	"laundry-booking-backend/internal/sweeper"
)

// SweepRunner triggers and reports the lifecycle sweep.
type SweepRunner interface {
	RunOnce(ctx context.Context) (booking.SweepReport, error)
	Status() sweeper.Status
}

// PoolStatser reports background worker counters.
type PoolStatser interface {
	Stats() notification.PoolStats
}

// Deps are the collaborators of the API handlers.
type Deps struct {
	Store      store.Store
	Engine     *schedule.Engine
	Manager    *booking.Manager
	Sweeps     SweepRunner
	Pool       PoolStatser
	Requesters *mw.Requesters
	Webpush    *webpush.Options
	// Cache holds cached GET responses. It is shared with whatever else frees
	// slots, such as the sweep; NewRouter creates one when nil.
	Cache      *cache.Cache
	Log        *zap.Logger
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store      store.Store
	engine     *schedule.Engine
	manager    *booking.Manager
	sweeps     SweepRunner
	pool       PoolStatser
	requesters *mw.Requesters
	webpush    *webpush.Options
	cache      *cache.Cache
	log        *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		store:      d.Store,
		engine:     d.Engine,
		manager:    d.Manager,
		sweeps:     d.Sweeps,
		pool:       d.Pool,
		requesters: d.Requesters,
		webpush:    d.Webpush,
		cache:      d.Cache,
		log:        d.Log,
	}
}

// fail maps domain errors onto HTTP responses.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, model.ErrCapacityUnavailable):
		c.JSON(http.StatusConflict, gin.H{"error": "capacity_unavailable"})
	case errors.Is(err, model.ErrResourceUnavailable):
		c.JSON(http.StatusConflict, gin.H{"error": "machine_unavailable"})
	case errors.Is(err, model.ErrSlotConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "slot_conflict"})
	case errors.Is(err, model.ErrInvalidSlot):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_slot"})
	case errors.Is(err, model.ErrSlotClosed):
		c.JSON(http.StatusBadRequest, gin.H{"error": "slot_closed"})
	case errors.Is(err, store.ErrChannelBound):
		c.JSON(http.StatusConflict, gin.H{"error": "channel_bound"})
	default:
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// category reads a required category query parameter.
func category(c *gin.Context) (model.Category, bool) {
	cat := model.Category(strings.ToUpper(c.Query("category")))
	if !cat.Valid() {
		badRequest(c, "category must be WASH or DRY")
		return "", false
	}
	return cat, true
}

// requester is only called behind mw.Requesters.Required.
func requester(c *gin.Context) *model.Resident {
	r, _ := mw.Requester(c)
	return r
}

type reservationView struct {
	ID            int64                   `json:"id"`
	MachineID     int64                   `json:"machine_id"`
	MachineNumber int                     `json:"machine_number,omitempty"`
	Category      model.Category          `json:"category,omitempty"`
	Start         time.Time               `json:"start"`
	End           time.Time               `json:"end"`
	Status        model.ReservationStatus `json:"status"`
}

func (h *Handler) reservationView(r model.Reservation) reservationView {
	loc := h.engine.Policy().Location
	v := reservationView{
		ID:        r.ID,
		MachineID: r.MachineID,
		Start:     r.StartAt.In(loc),
		End:       r.EndAt.In(loc),
		Status:    r.Status,
	}
	if r.Machine.ID != 0 {
		v.MachineNumber = r.Machine.Number
		v.Category = r.Machine.Category
	}
	return v
}
