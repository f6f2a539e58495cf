package mw

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"laundry-booking-backend/internal/model"
)

// ChannelHeader carries the caller's delivery channel id.
const ChannelHeader = "X-Channel-ID"

const requesterKey = "requester"

// ResidentLookup resolves a channel to the resident bound to it.
type ResidentLookup interface {
	ResidentByChannel(ctx context.Context, channelID string) (*model.Resident, error)
}

// Requesters identifies callers by their channel header.
type Requesters struct {
	lookup ResidentLookup
	cache  *cache.Cache
	log    *zap.Logger
}

// NewRequesters caches resolved residents for ttl.
func NewRequesters(lookup ResidentLookup, ttl time.Duration, log *zap.Logger) *Requesters {
	return &Requesters{
		lookup: lookup,
		cache:  cache.New(ttl, 2*ttl),
		log:    log,
	}
}

// Forget drops a cached resolution, e.g. after the binding changed.
func (r *Requesters) Forget(channelID string) {
	r.cache.Delete(channelID)
}

func (r *Requesters) resolve(c *gin.Context) (*model.Resident, error) {
	channelID := c.GetHeader(ChannelHeader)
	if channelID == "" {
		return nil, model.ErrNotFound
	}
	if v, found := r.cache.Get(channelID); found {
		resident := v.(model.Resident)
		return &resident, nil
	}
	resident, err := r.lookup.ResidentByChannel(c.Request.Context(), channelID)
	if err != nil {
		return nil, err
	}
	r.cache.SetDefault(channelID, *resident)
	return resident, nil
}

// Optional attaches the requester when the header names a bound channel.
func (r *Requesters) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		resident, err := r.resolve(c)
		switch {
		case err == nil:
			c.Set(requesterKey, resident)
		case !errors.Is(err, model.ErrNotFound):
			r.log.Warn("failed to resolve requester", zap.Error(err))
		}
		c.Next()
	}
}

// Required rejects callers without a bound channel.
func (r *Requesters) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		resident, err := r.resolve(c)
		if errors.Is(err, model.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown channel, sign in first"})
			return
		}
		if err != nil {
			r.log.Error("failed to resolve requester", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.Set(requesterKey, resident)
		c.Next()
	}
}

// Requester returns the resident attached by Optional or Required.
func Requester(c *gin.Context) (*model.Resident, bool) {
	v, ok := c.Get(requesterKey)
	if !ok {
		return nil, false
	}
	resident, ok := v.(*model.Resident)
	return resident, ok
}
