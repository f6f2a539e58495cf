package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"laundry-booking-backend/internal/model"
)

type createReportRequest struct {
	Description   string `json:"description" binding:"required"`
	ReservationID *int64 `json:"reservation_id"`
}

// CreateReport files a problem report, optionally about one of the caller's
// reservations.
func (h *Handler) CreateReport(c *gin.Context) {
	var req createReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	desc := strings.TrimSpace(req.Description)
	if desc == "" || len(desc) > 2000 {
		badRequest(c, "description must be 1 to 2000 bytes")
		return
	}

	ctx := c.Request.Context()
	me := requester(c)
	if req.ReservationID != nil {
		if _, err := h.manager.GetReservation(ctx, *req.ReservationID, me.ID); err != nil {
			h.fail(c, err)
			return
		}
	}

	report := model.ProblemReport{
		ResidentID:    me.ID,
		ReservationID: req.ReservationID,
		Description:   desc,
	}
	if err := h.store.CreateProblemReport(ctx, &report); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, report)
}
