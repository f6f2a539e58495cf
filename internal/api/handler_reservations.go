package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"laundry-booking-backend/internal/model"
	"laundry-booking-backend/internal/parse"
)

type createReservationRequest struct {
	MachineID int64  `json:"machine_id" binding:"required"`
	Start     string `json:"start" binding:"required"`
}

// CreateReservation books a machine for the caller. A lost race answers 409
// with the slots still free that day.
func (h *Handler) CreateReservation(c *gin.Context) {
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	loc := h.engine.Policy().Location
	start, err := parse.ParseSlotStart(req.Start, loc)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	r, err := h.manager.CreateReservation(ctx, requester(c).ID, req.MachineID, start)
	if errors.Is(err, model.ErrSlotConflict) {
		body := gin.H{"error": "slot_conflict"}
		if machine, err := h.store.GetMachine(ctx, req.MachineID); err == nil {
			free, err := h.engine.FreeSlots(ctx, start, machine.Category)
			if err != nil && !errors.Is(err, model.ErrCapacityUnavailable) {
				h.log.Warn("failed to list free slots after conflict", zap.Error(err))
			}
			if free == nil {
				free = []time.Time{}
			}
			body["free_slots"] = free
		}
		c.JSON(http.StatusConflict, body)
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	if machine, err := h.store.GetMachine(ctx, r.MachineID); err == nil {
		r.Machine = *machine
	}
	c.JSON(http.StatusCreated, h.reservationView(*r))
}

// ListReservations is the caller's "my bookings" view. By default only live
// reservations that have not ended are listed; upcoming=false lists all.
func (h *Handler) ListReservations(c *gin.Context) {
	upcoming := c.DefaultQuery("upcoming", "true") != "false"
	list, err := h.manager.ListResidentReservations(c.Request.Context(), requester(c).ID, upcoming)
	if err != nil {
		h.fail(c, err)
		return
	}
	views := make([]reservationView, 0, len(list))
	for _, r := range list {
		views = append(views, h.reservationView(r))
	}
	c.JSON(http.StatusOK, gin.H{"reservations": views})
}

func reservationID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid reservation id")
		return 0, false
	}
	return id, true
}

// CancelReservation cancels one of the caller's live reservations.
func (h *Handler) CancelReservation(c *gin.Context) {
	id, ok := reservationID(c)
	if !ok {
		return
	}
	cancelled, err := h.manager.CancelReservation(c.Request.Context(), id, requester(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !cancelled {
		c.JSON(http.StatusNotFound, gin.H{"error": "no live reservation to cancel"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

// ConfirmReservation confirms the caller will use the slot. Confirming twice,
// or confirming a closed reservation, is not an error.
func (h *Handler) ConfirmReservation(c *gin.Context) {
	id, ok := reservationID(c)
	if !ok {
		return
	}
	r, err := h.manager.ConfirmOwned(c.Request.Context(), id, requester(c).ID)
	if errors.Is(err, model.ErrAlreadyFinalized) {
		c.JSON(http.StatusOK, gin.H{"already_finalized": true, "reservation": h.reservationView(*r)})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"already_finalized": false, "reservation": h.reservationView(*r)})
}
