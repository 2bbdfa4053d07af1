package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/cart-store-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/cart-store-go/internal/contracts"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	declared   []string
	declareErr error
	publishErr error
	messages   []published
	closed     bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.declared = append(f.declared, name+":"+kind)
	return f.declareErr
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("publish without deadline")
	}
	if f.publishErr != nil {
		return f.publishErr
	}
	f.messages = append(f.messages, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestNewPublisherDeclaresExchange(t *testing.T) {
	ch := &fakeChannel{}

	p, err := newPublisher(ch)
	require.NoError(t, err)
	require.Equal(t, []string{EventsExchange + ":topic"}, ch.declared)

	require.NoError(t, p.Close())
	require.True(t, ch.closed)
}

func TestNewPublisherDeclareError(t *testing.T) {
	ch := &fakeChannel{declareErr: errors.New("access refused")}

	_, err := newPublisher(ch)
	require.ErrorIs(t, err, ch.declareErr)
}

func TestPublishCartUpdated(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newPublisher(ch)
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	env := contracts.BuildCartUpdatedEvent(cart.Snapshot{
		Revision: 5,
		Items:    []cart.Item{{ID: "A", Title: "T", Price: 2, Quantity: 3}},
	}, contracts.EnvelopeOptions{
		CorrelationID: "c0a8e2b6-3c6a-4d7e-9c8f-1f2e3d4c5b6a",
		OccurredAt:    now,
	})

	require.NoError(t, p.PublishCartUpdated(context.Background(), env))
	require.Len(t, ch.messages, 1)

	msg := ch.messages[0]
	require.Equal(t, EventsExchange, msg.exchange)
	require.Equal(t, CartUpdatedRoutingKey, msg.key)
	require.Equal(t, "application/json", msg.msg.ContentType)
	require.Equal(t, amqp.Persistent, msg.msg.DeliveryMode)
	require.Equal(t, env.EventID, msg.msg.MessageId)
	require.Equal(t, env.CorrelationID, msg.msg.CorrelationId)

	var decoded contracts.EventEnvelope
	require.NoError(t, json.Unmarshal(msg.msg.Body, &decoded))
	require.Equal(t, int64(5), decoded.Sequence)
	require.Equal(t, env.Payload.Items, decoded.Payload.Items)
	require.Equal(t, "6.00", decoded.Payload.Subtotal)
}

func TestPublishCartUpdatedError(t *testing.T) {
	ch := &fakeChannel{publishErr: errors.New("channel closed")}
	p, err := newPublisher(ch)
	require.NoError(t, err)

	err = p.PublishCartUpdated(context.Background(), contracts.BuildCartUpdatedEvent(cart.Snapshot{}, contracts.EnvelopeOptions{}))
	require.ErrorIs(t, err, ch.publishErr)
}
