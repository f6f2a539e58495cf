package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"laundry-booking-backend/internal/model"
	"laundry-booking-backend/internal/mw"
	"laundry-booking-backend/internal/parse"
)

type bindResidentRequest struct {
	FullName string `json:"full_name"`
	IDCard   string `json:"id_card"`
	Language string `json:"language"`
}

// BindResident signs the caller's channel in as a resident, found either by
// full name or by id card. The lookup has to be unambiguous.
func (h *Handler) BindResident(c *gin.Context) {
	channelID := c.GetHeader(mw.ChannelHeader)
	if channelID == "" {
		badRequest(c, mw.ChannelHeader+" header is required")
		return
	}

	var req bindResidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	var lang model.Language
	if req.Language != "" {
		var ok bool
		if lang, ok = model.ParseLanguage(req.Language); !ok {
			badRequest(c, "language must be RU, ENG or CN")
			return
		}
	}

	ctx := c.Request.Context()
	var (
		candidates []model.Resident
		err        error
	)
	switch {
	case strings.TrimSpace(req.FullName) != "":
		name, perr := parse.ParseFullName(req.FullName)
		if perr != nil {
			badRequest(c, perr.Error())
			return
		}
		candidates, err = h.store.FindResidentsByName(ctx, name.Last, name.First, name.Patronymic)
	case strings.TrimSpace(req.IDCard) != "":
		card, perr := parse.ParseIDCard(req.IDCard)
		if perr != nil {
			badRequest(c, perr.Error())
			return
		}
		candidates, err = h.store.FindResidentsByIDCard(ctx, card)
	default:
		badRequest(c, "full_name or id_card is required")
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	switch len(candidates) {
	case 0:
		c.JSON(http.StatusNotFound, gin.H{"error": "resident not found"})
		return
	case 1:
	default:
		c.JSON(http.StatusConflict, gin.H{"error": "ambiguous_resident"})
		return
	}

	resident, err := h.store.BindChannel(ctx, candidates[0].ID, channelID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if lang != "" {
		if err := h.store.SetLanguage(ctx, resident.ID, lang); err != nil {
			h.fail(c, err)
			return
		}
		resident.Language = lang
	}
	h.requesters.Forget(channelID)

	c.JSON(http.StatusOK, gin.H{"resident": resident})
}

type setLanguageRequest struct {
	Language string `json:"language" binding:"required"`
}

// SetLanguage changes the caller's message language.
func (h *Handler) SetLanguage(c *gin.Context) {
	var req setLanguageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	lang, ok := model.ParseLanguage(req.Language)
	if !ok {
		badRequest(c, "language must be RU, ENG or CN")
		return
	}

	if err := h.store.SetLanguage(c.Request.Context(), requester(c).ID, lang); err != nil {
		h.fail(c, err)
		return
	}
	h.requesters.Forget(c.GetHeader(mw.ChannelHeader))
	c.Status(http.StatusNoContent)
}
