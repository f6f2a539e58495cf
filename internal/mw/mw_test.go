package mw

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"laundry-booking-backend/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func do(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestCache(t *testing.T) {
	store := cache.New(time.Minute, time.Minute)
	var hits int32

	r := gin.New()
	r.Use(InvalidateOnWrite(store))
	r.GET("/slots", Cache(store, time.Minute, ChannelHeader), func(c *gin.Context) {
		n := atomic.AddInt32(&hits, 1)
		c.JSON(http.StatusOK, gin.H{"n": n})
	})
	r.POST("/reservations", func(c *gin.Context) { c.Status(http.StatusCreated) })
	r.POST("/fail", func(c *gin.Context) { c.Status(http.StatusConflict) })

	first := do(r, http.MethodGet, "/slots", nil)
	assert.JSONEq(t, `{"n":1}`, first.Body.String())

	second := do(r, http.MethodGet, "/slots", nil)
	assert.JSONEq(t, `{"n":1}`, second.Body.String())
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, "application/json; charset=utf-8", second.Header().Get("Content-Type"))

	other := do(r, http.MethodGet, "/slots", map[string]string{ChannelHeader: "chan-1"})
	assert.JSONEq(t, `{"n":2}`, other.Body.String(), "vary header splits the cache")

	do(r, http.MethodPost, "/fail", nil)
	assert.JSONEq(t, `{"n":1}`, do(r, http.MethodGet, "/slots", nil).Body.String())

	do(r, http.MethodPost, "/reservations", nil)
	assert.JSONEq(t, `{"n":3}`, do(r, http.MethodGet, "/slots", nil).Body.String())
}

func TestCache_SkipsErrors(t *testing.T) {
	store := cache.New(time.Minute, time.Minute)
	var hits int32

	r := gin.New()
	r.GET("/x", Cache(store, time.Minute), func(c *gin.Context) {
		atomic.AddInt32(&hits, 1)
		c.Status(http.StatusInternalServerError)
	})

	do(r, http.MethodGet, "/x", nil)
	do(r, http.MethodGet, "/x", nil)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(rate.Limit(0.001), 2))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodGet, "/", nil).Code)

	// A bound channel has its own bucket.
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/", map[string]string{ChannelHeader: "chan-1"}).Code)
}

func TestKeyedRateLimiter_ReusesLimiter(t *testing.T) {
	l := NewKeyedRateLimiter(rate.Limit(1), 1, time.Minute)
	assert.Same(t, l.GetLimiter("a"), l.GetLimiter("a"))
	assert.NotSame(t, l.GetLimiter("a"), l.GetLimiter("b"))
}

type lookupFunc func(ctx context.Context, channelID string) (*model.Resident, error)

func (f lookupFunc) ResidentByChannel(ctx context.Context, channelID string) (*model.Resident, error) {
	return f(ctx, channelID)
}

func TestRequesters(t *testing.T) {
	var calls int32
	lookup := lookupFunc(func(_ context.Context, channelID string) (*model.Resident, error) {
		atomic.AddInt32(&calls, 1)
		switch channelID {
		case "chan-1":
			return &model.Resident{ID: 7, FirstName: "Ivan"}, nil
		case "broken":
			return nil, errors.New("connection refused")
		}
		return nil, model.ErrNotFound
	})
	req := NewRequesters(lookup, time.Minute, zap.NewNop())

	whoami := func(c *gin.Context) {
		if resident, ok := Requester(c); ok {
			c.String(http.StatusOK, strconv.FormatInt(resident.ID, 10))
			return
		}
		c.String(http.StatusOK, "anonymous")
	}
	r := gin.New()
	r.GET("/optional", req.Optional(), whoami)
	r.GET("/required", req.Required(), whoami)

	assert.Equal(t, "anonymous", do(r, http.MethodGet, "/optional", nil).Body.String())
	assert.Equal(t, "anonymous", do(r, http.MethodGet, "/optional", map[string]string{ChannelHeader: "stranger"}).Body.String())
	assert.Equal(t, "7", do(r, http.MethodGet, "/optional", map[string]string{ChannelHeader: "chan-1"}).Body.String())

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/required", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/required", map[string]string{ChannelHeader: "stranger"}).Code)
	assert.Equal(t, http.StatusInternalServerError, do(r, http.MethodGet, "/required", map[string]string{ChannelHeader: "broken"}).Code)

	before := atomic.LoadInt32(&calls)
	w := do(r, http.MethodGet, "/required", map[string]string{ChannelHeader: "chan-1"})
	assert.Equal(t, "7", w.Body.String())
	assert.Equal(t, before, atomic.LoadInt32(&calls), "resolution is cached")

	req.Forget("chan-1")
	do(r, http.MethodGet, "/required", map[string]string{ChannelHeader: "chan-1"})
	assert.Equal(t, before+1, atomic.LoadInt32(&calls))
}

func TestAdminToken(t *testing.T) {
	r := gin.New()
	r.POST("/admin", AdminToken("s3cret"), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.POST("/disabled", AdminToken(""), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/admin", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/admin", map[string]string{"Authorization": "Bearer nope"}).Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodPost, "/admin", map[string]string{"Authorization": "Bearer s3cret"}).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/disabled", map[string]string{"Authorization": "Bearer "}).Code)
}

func TestLoggerAndRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	r := gin.New()
	r.Use(Logger(log), Recovery(log))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := do(r, http.MethodGet, "/ok", map[string]string{RequestIDHeader: "req-1"})
	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))

	w = do(r, http.MethodGet, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	requests := logs.FilterMessage("request").AllUntimed()
	require.Len(t, requests, 2)
	assert.Equal(t, "req-1", requests[0].ContextMap()["request_id"])
	assert.Equal(t, int64(http.StatusOK), requests[0].ContextMap()["status"])
	assert.Equal(t, zapcore.ErrorLevel, requests[1].Level)
	assert.Equal(t, 1, logs.FilterMessage("handler panic").Len())
}
