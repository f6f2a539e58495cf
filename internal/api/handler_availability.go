package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"laundry-booking-backend/internal/model"
	"laundry-booking-backend/internal/parse"
	"laundry-booking-backend/internal/store"
)

// ListMachines returns the registry, optionally filtered by category and status.
func (h *Handler) ListMachines(c *gin.Context) {
	var filter store.ResourceFilter
	if q := c.Query("category"); q != "" {
		filter.Category = model.Category(strings.ToUpper(q))
		if !filter.Category.Valid() {
			badRequest(c, "category must be WASH or DRY")
			return
		}
	}
	if q := c.Query("status"); q != "" {
		filter.Status = model.MachineStatus(strings.ToUpper(q))
		if !filter.Status.Valid() {
			badRequest(c, "status must be IN_SERVICE or OUT_OF_SERVICE")
			return
		}
	}

	machines, err := h.store.ListResources(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"machines": machines})
}

// GetCapacity returns the number of slots a category offers per day.
func (h *Handler) GetCapacity(c *gin.Context) {
	cat, ok := category(c)
	if !ok {
		return
	}
	capacity, err := h.engine.DailyCapacity(c.Request.Context(), cat)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"category":          cat,
		"daily_capacity":    capacity,
		"slots_per_machine": h.engine.Policy().SlotsPerResource(cat),
	})
}

// GetWorkload returns the calendar of a month: live reservations per day
// against the daily capacity.
func (h *Handler) GetWorkload(c *gin.Context) {
	cat, ok := category(c)
	if !ok {
		return
	}

	now := h.engine.Now().In(h.engine.Policy().Location)
	year, month := now.Year(), now.Month()
	if q := c.Query("month"); q != "" {
		var err error
		if year, month, err = parse.ParseMonth(q); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	days, err := h.engine.MonthOverview(c.Request.Context(), year, month, cat)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"year":     year,
		"month":    int(month),
		"category": cat,
		"days":     days,
	})
}

// GetFreeSlots lists the slot starts of a day with at least one free machine.
func (h *Handler) GetFreeSlots(c *gin.Context) {
	cat, ok := category(c)
	if !ok {
		return
	}
	day, err := parse.ParseDay(c.Query("day"), h.engine.Policy().Location)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	slots, err := h.engine.FreeSlots(c.Request.Context(), day, cat)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"day":      day.Format("2006-01-02"),
		"category": cat,
		"slots":    slots,
	})
}

// GetFreeMachines lists the machines free for the slot starting at start.
func (h *Handler) GetFreeMachines(c *gin.Context) {
	cat, ok := category(c)
	if !ok {
		return
	}
	start, err := parse.ParseSlotStart(c.Query("start"), h.engine.Policy().Location)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	machines, err := h.engine.FreeResourcesAt(c.Request.Context(), start, cat)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"start":    start.In(h.engine.Policy().Location),
		"category": cat,
		"machines": machines,
	})
}
