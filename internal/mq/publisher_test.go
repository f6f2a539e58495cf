package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakeChannel struct {
	out    []published
	err    error
	closed bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.out = append(f.out, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestPublisher_PublishJSON(t *testing.T) {
	ch := &fakeChannel{}
	p := &Publisher{ch: ch, exchange: "laundry.events"}

	require.NoError(t, p.PublishJSON(context.Background(), "reservation.created", map[string]any{"reservation_id": 7}))
	require.Len(t, ch.out, 1)
	assert.Equal(t, "laundry.events", ch.out[0].exchange)
	assert.Equal(t, "reservation.created", ch.out[0].key)
	assert.Equal(t, "application/json", ch.out[0].msg.ContentType)
	assert.Equal(t, amqp.Persistent, ch.out[0].msg.DeliveryMode)

	var body map[string]int
	require.NoError(t, json.Unmarshal(ch.out[0].msg.Body, &body))
	assert.Equal(t, 7, body["reservation_id"])

	assert.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestPublisher_Errors(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	p := &Publisher{ch: ch, exchange: "x"}

	assert.EqualError(t, p.PublishJSON(context.Background(), "k", 1), "channel closed")
	assert.Error(t, p.PublishJSON(context.Background(), "k", make(chan int)), "unmarshalable values fail before publishing")
}
