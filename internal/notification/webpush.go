package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"laundry-booking-backend/internal/model"
)

// PushClient sends one web push notification.
type PushClient interface {
	Send(ctx context.Context, payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

type webPushClient struct{}

func (webPushClient) Send(ctx context.Context, payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotificationWithContext(ctx, payload, sub, options)
}

// SubscriptionStore is the part of the store the web push sender needs.
type SubscriptionStore interface {
	SubscriptionsByChannel(ctx context.Context, channelID string) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// WebPushSender delivers to every browser subscription of a channel.
type WebPushSender struct {
	subs    SubscriptionStore
	client  PushClient
	options *webpush.Options
	log     *zap.Logger
}

func NewWebPushSender(subs SubscriptionStore, options *webpush.Options, log *zap.Logger) *WebPushSender {
	return &WebPushSender{subs: subs, client: webPushClient{}, options: options, log: log}
}

// Send succeeds if at least one subscription accepted the message. Expired
// subscriptions (404/410) are deleted; a channel without live subscriptions is
// permanently blocked.
func (s *WebPushSender) Send(ctx context.Context, channelID string, msg Message) error {
	subs, err := s.subs.SubscriptionsByChannel(ctx, channelID)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return ErrPermanentlyBlocked
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	var (
		delivered int
		limited   *RateLimitedError
		lastErr   error
	)
	for _, sub := range subs {
		resp, err := s.client.Send(ctx, payload, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256DH,
				Auth:   sub.Auth,
			},
		}, s.options)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
			s.log.Info("subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
			if err := s.subs.DeleteSubscription(ctx, sub.Endpoint); err != nil {
				s.log.Warn("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
			}
		case resp.StatusCode == http.StatusTooManyRequests:
			limited = &RateLimitedError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())}
		case resp.StatusCode >= http.StatusBadRequest:
			lastErr = fmt.Errorf("push service answered %d", resp.StatusCode)
		default:
			delivered++
		}
	}

	switch {
	case delivered > 0:
		return nil
	case limited != nil:
		return limited
	case lastErr != nil:
		return lastErr
	default:
		return ErrPermanentlyBlocked
	}
}

// parseRetryAfter accepts delta-seconds or an HTTP date; anything else means one second.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return time.Second
}
