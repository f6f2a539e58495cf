package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"laundry-booking-backend/internal/model"
	"laundry-booking-backend/internal/sweeper"
)

type machineStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SetMachineStatus takes a machine in or out of service. Existing
// reservations are kept.
func (h *Handler) SetMachineStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid machine id")
		return
	}
	var req machineStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	status := model.MachineStatus(strings.ToUpper(req.Status))
	if !status.Valid() {
		badRequest(c, "status must be IN_SERVICE or OUT_OF_SERVICE")
		return
	}

	machine, err := h.store.SetMachineStatus(c.Request.Context(), id, status)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, machine)
}

// TriggerSweep runs the lifecycle sweep now.
func (h *Handler) TriggerSweep(c *gin.Context) {
	report, err := h.sweeps.RunOnce(c.Request.Context())
	if errors.Is(err, sweeper.ErrSweepInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": "sweep_in_progress"})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
