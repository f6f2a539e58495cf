package notification

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// MessageKind tells receivers what a message is about.
type MessageKind string

const (
	KindConfirmationRequest MessageKind = "confirmation_request"
	KindAutoCancelled       MessageKind = "auto_cancelled"
	KindSlotFreed           MessageKind = "slot_freed"
)

// Message is one rendered notification.
type Message struct {
	Kind          MessageKind `json:"kind"`
	Title         string      `json:"title"`
	Body          string      `json:"body"`
	ReservationID int64       `json:"reservation_id,omitempty"`
}

// Sender delivers a message to one channel. It returns nil on success, a
// *RateLimitedError when the channel asks to slow down, ErrPermanentlyBlocked
// when the recipient can never be reached, and any other error for transient
// failures.
type Sender interface {
	Send(ctx context.Context, channelID string, msg Message) error
}

// ErrPermanentlyBlocked means the recipient blocked or removed the channel.
var ErrPermanentlyBlocked = errors.New("recipient permanently unreachable")

// RateLimitedError asks the caller to wait RetryAfter before trying again.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// DeliveryError is a failed delivery after the retry policy ran out. It is
// logged, never returned to the operation that caused the notification.
type DeliveryError struct {
	ChannelID string
	Kind      MessageKind
	Attempts  int
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery of %s to %s failed after %d attempt(s): %v", e.Kind, e.ChannelID, e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
