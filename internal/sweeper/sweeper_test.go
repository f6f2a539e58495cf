package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"laundry-booking-backend/config"
	"laundry-booking-backend/internal/booking"
)

type sweepFunc func(ctx context.Context, now time.Time) (booking.SweepReport, error)

func (f sweepFunc) Sweep(ctx context.Context, now time.Time) (booking.SweepReport, error) {
	return f(ctx, now)
}

func testConfig(enabled bool) *config.SweepConfig {
	return &config.SweepConfig{Enabled: enabled, Interval: time.Hour}
}

func TestRunOnce_RecordsStatus(t *testing.T) {
	fixed := time.Date(2030, time.March, 14, 9, 50, 0, 0, time.UTC)
	var seen time.Time
	svc := NewService(testConfig(true), sweepFunc(func(ctx context.Context, now time.Time) (booking.SweepReport, error) {
		seen = now
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return booking.SweepReport{Reminded: 2, Expired: 1}, nil
	}), zap.NewNop())
	svc.now = func() time.Time { return fixed }

	report, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, booking.SweepReport{Reminded: 2, Expired: 1}, report)
	assert.Equal(t, fixed, seen)

	status := svc.Status()
	assert.Equal(t, fixed, status.LastRun)
	assert.Equal(t, report, status.LastReport)
	assert.Empty(t, status.LastError)
	assert.Equal(t, 1, status.Runs)
}

func TestRunOnce_Error(t *testing.T) {
	svc := NewService(testConfig(true), sweepFunc(func(context.Context, time.Time) (booking.SweepReport, error) {
		return booking.SweepReport{}, errors.New("database is locked")
	}), zap.NewNop())

	_, err := svc.RunOnce(context.Background())
	assert.EqualError(t, err, "database is locked")
	assert.Equal(t, "database is locked", svc.Status().LastError)
}

func TestRunOnce_SkipsWhileRunning(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	svc := NewService(testConfig(true), sweepFunc(func(context.Context, time.Time) (booking.SweepReport, error) {
		close(entered)
		<-release
		return booking.SweepReport{}, nil
	}), zap.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := svc.RunOnce(context.Background())
		done <- err
	}()
	<-entered

	_, err := svc.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrSweepInProgress)

	close(release)
	assert.NoError(t, <-done)
	assert.Equal(t, 1, svc.Status().Runs)
}

func TestRun_Disabled(t *testing.T) {
	svc := NewService(testConfig(false), sweepFunc(func(context.Context, time.Time) (booking.SweepReport, error) {
		t.Fatal("sweep must not run when disabled")
		return booking.SweepReport{}, nil
	}), zap.NewNop())

	svc.Run(context.Background())
	assert.Equal(t, 0, svc.Status().Runs)
}

func TestRun_SweepsImmediatelyAndStops(t *testing.T) {
	swept := make(chan struct{}, 1)
	svc := NewService(testConfig(true), sweepFunc(func(context.Context, time.Time) (booking.SweepReport, error) {
		select {
		case swept <- struct{}{}:
		default:
		}
		return booking.SweepReport{}, nil
	}), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(stopped)
	}()

	select {
	case <-swept:
	case <-time.After(5 * time.Second):
		t.Fatal("first sweep did not run")
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestCronLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := cronLogger{log: zap.New(core)}

	l.Info("wake", "now", "09:50")
	l.Error(errors.New("boom"), "panic", "stack", "trace")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "09:50", entries[0].ContextMap()["now"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}
