package notification

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"laundry-booking-backend/config"
	"laundry-booking-backend/internal/model"
)

// Directory lists the residents that can be reached.
type Directory interface {
	ListResidentsWithChannel(ctx context.Context) ([]model.Resident, error)
}

// FreedSlot is a window that became bookable again.
type FreedSlot struct {
	Machine model.Machine
	Start   time.Time
	End     time.Time
}

// FanOutReport summarises one NotifyFreedSlot call.
type FanOutReport struct {
	Recipients int
	Sent       int
	Blocked    int
	Failed     int
}

const fanOutConcurrency = 4

// Notifier delivers messages with a shared send rate and a bounded retry.
type Notifier struct {
	dir           Directory
	sender        Sender
	catalog       *Catalog
	limiter       *rate.Limiter
	backoff       time.Duration
	maxRetryAfter time.Duration
	log           *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewNotifier creates a notifier from the finalized notification config.
func NewNotifier(dir Directory, sender Sender, catalog *Catalog, cfg *config.NotificationConfig, log *zap.Logger) *Notifier {
	return &Notifier{
		dir:           dir,
		sender:        sender,
		catalog:       catalog,
		limiter:       rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
		backoff:       cfg.RetryBackoff,
		maxRetryAfter: cfg.MaxRetryAfter,
		log:           log,
		sleep:         sleepCtx,
	}
}

// Catalog returns the message catalog used for rendering.
func (n *Notifier) Catalog() *Catalog {
	return n.catalog
}

// Deliver sends msg to one channel. A rate-limited send waits RetryAfter
// (capped) and retries once; a transient failure retries once after the
// backoff; a permanently blocked recipient is not retried.
func (n *Notifier) Deliver(ctx context.Context, channelID string, msg Message) error {
	err := n.attempt(ctx, channelID, msg)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPermanentlyBlocked) {
		return &DeliveryError{ChannelID: channelID, Kind: msg.Kind, Attempts: 1, Err: err}
	}

	wait := n.backoff
	var limited *RateLimitedError
	if errors.As(err, &limited) {
		wait = limited.RetryAfter
	}
	if wait > n.maxRetryAfter {
		wait = n.maxRetryAfter
	}
	n.log.Debug("retrying delivery", zap.String("channel", channelID), zap.Duration("wait", wait), zap.Error(err))

	if err := n.sleep(ctx, wait); err != nil {
		return &DeliveryError{ChannelID: channelID, Kind: msg.Kind, Attempts: 1, Err: err}
	}
	if err := n.attempt(ctx, channelID, msg); err != nil {
		return &DeliveryError{ChannelID: channelID, Kind: msg.Kind, Attempts: 2, Err: err}
	}
	return nil
}

func (n *Notifier) attempt(ctx context.Context, channelID string, msg Message) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}
	return n.sender.Send(ctx, channelID, msg)
}

// NotifyFreedSlot tells every reachable resident except excludeResidentID
// about the freed window. Deliveries are independent: a failure is logged and
// counted, never allowed to stop the others. The directory is read once up
// front, so no store lock is held while sending.
func (n *Notifier) NotifyFreedSlot(ctx context.Context, slot FreedSlot, excludeResidentID int64) (FanOutReport, error) {
	residents, err := n.dir.ListResidentsWithChannel(ctx)
	if err != nil {
		return FanOutReport{}, err
	}

	var sent, blocked, failed atomic.Int64
	recipients := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutConcurrency)
	for _, r := range residents {
		if r.ID == excludeResidentID || r.ChannelID == nil {
			continue
		}
		recipients++
		channelID := *r.ChannelID
		msg := n.catalog.SlotFreed(r.Language, slot)

		g.Go(func() error {
			err := n.Deliver(gctx, channelID, msg)
			switch {
			case err == nil:
				sent.Add(1)
			case errors.Is(err, ErrPermanentlyBlocked):
				blocked.Add(1)
				n.log.Info("skipping unreachable resident", zap.String("channel", channelID))
			default:
				failed.Add(1)
				n.log.Warn("freed slot delivery failed", zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	report := FanOutReport{
		Recipients: recipients,
		Sent:       int(sent.Load()),
		Blocked:    int(blocked.Load()),
		Failed:     int(failed.Load()),
	}
	n.log.Info("freed slot fan-out finished",
		zap.Int64("machine_id", slot.Machine.ID),
		zap.Time("start", slot.Start),
		zap.Int("recipients", report.Recipients),
		zap.Int("sent", report.Sent),
		zap.Int("blocked", report.Blocked),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
