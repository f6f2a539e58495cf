package notification

import (
	"context"
	"sync"
	"time"

	"laundry-booking-backend/config"
	"laundry-booking-backend/internal/model"
)

// mockSender is a mock implementation of the Sender interface.
type mockSender struct {
	mu       sync.Mutex
	SendFunc func(channelID string, msg Message, attempt int) error
	attempts map[string]int
	sent     []string
}

func (m *mockSender) Send(_ context.Context, channelID string, msg Message) error {
	m.mu.Lock()
	if m.attempts == nil {
		m.attempts = make(map[string]int)
	}
	m.attempts[channelID]++
	attempt := m.attempts[channelID]
	m.mu.Unlock()

	var err error
	if m.SendFunc != nil {
		err = m.SendFunc(channelID, msg, attempt)
	}
	if err == nil {
		m.mu.Lock()
		m.sent = append(m.sent, channelID)
		m.mu.Unlock()
	}
	return err
}

func (m *mockSender) Attempts(channelID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts[channelID]
}

type staticDirectory []model.Resident

func (d staticDirectory) ListResidentsWithChannel(context.Context) ([]model.Resident, error) {
	return d, nil
}

func (d staticDirectory) GetResident(_ context.Context, id int64) (*model.Resident, error) {
	for _, r := range d {
		if r.ID == id {
			r := r
			return &r, nil
		}
	}
	return nil, model.ErrNotFound
}

func resident(id int64, channel string, lang model.Language) model.Resident {
	r := model.Resident{ID: id, Language: lang}
	if channel != "" {
		r.ChannelID = &channel
	}
	return r
}

func testNotificationConfig() *config.NotificationConfig {
	return &config.NotificationConfig{
		RatePerSec:    1000,
		RetryBackoff:  time.Second,
		MaxRetryAfter: 30 * time.Second,
	}
}

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return nil
}
