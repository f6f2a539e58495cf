package notification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"laundry-booking-backend/internal/model"
)

type recordingSender struct {
	mu  sync.Mutex
	got map[string][]Message
}

func (s *recordingSender) Send(_ context.Context, channelID string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.got == nil {
		s.got = make(map[string][]Message)
	}
	s.got[channelID] = append(s.got[channelID], msg)
	return nil
}

func TestService(t *testing.T) {
	dir := staticDirectory{
		resident(1, "chan-1", model.LanguageENG),
		resident(2, "chan-2", model.LanguageRU),
		resident(3, "", model.LanguageRU),
	}
	sender := &recordingSender{}
	notifier := NewNotifier(dir, sender, NewCatalog(time.UTC, model.LanguageRU), testNotificationConfig(), zap.NewNop())
	pool := NewWorkerPool(1, 8, zap.NewNop())
	pool.Start(context.Background())
	svc := NewService(pool, notifier, dir, zap.NewNop())

	r := model.Reservation{
		ID:         9,
		ResidentID: 1,
		StartAt:    time.Date(2030, 3, 14, 11, 0, 0, 0, time.UTC),
		EndAt:      time.Date(2030, 3, 14, 12, 30, 0, 0, time.UTC),
		Machine:    model.Machine{ID: 1, Number: 1, Category: model.CategoryWash},
	}
	ctx := context.Background()
	require.NoError(t, svc.ConfirmationRequested(ctx, r))
	require.NoError(t, svc.AutoCancelled(ctx, r))
	require.NoError(t, svc.SlotFreed(ctx, r, r.ResidentID))

	ownerless := r
	ownerless.ResidentID = 3
	require.NoError(t, svc.ConfirmationRequested(ctx, ownerless))

	pool.Close()
	require.NoError(t, pool.Wait(ctx))

	require.Len(t, sender.got["chan-1"], 2)
	assert.Equal(t, KindConfirmationRequest, sender.got["chan-1"][0].Kind)
	assert.Equal(t, KindAutoCancelled, sender.got["chan-1"][1].Kind)
	require.Len(t, sender.got["chan-2"], 1)
	assert.Equal(t, KindSlotFreed, sender.got["chan-2"][0].Kind)

	stats := pool.Stats()
	assert.Equal(t, uint64(4), stats.Completed)
	assert.Zero(t, stats.Failed)
}
