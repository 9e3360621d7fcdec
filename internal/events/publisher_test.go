package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/storefront-checkout/internal/model"
)

type fakeChannel struct {
	key string
	msg amqp.Publishing
	err error
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.key = key
	f.msg = msg
	return f.err
}

func (f *fakeChannel) Close() error { return nil }

func TestPublishOrderCreated(t *testing.T) {
	ch := &fakeChannel{}
	fixed := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	p := &Publisher{ch: ch, now: func() time.Time { return fixed }}

	o := &model.Order{
		ID:            "order-1",
		Contact:       model.Contact{Email: "ayesha@example.com"},
		PaymentMethod: model.PaymentBankDeposit,
		Status:        model.OrderStatusAwaitingVerification,
		Currency:      "PKR",
		TotalCents:    2099,
		VoucherCode:   "SAVE10",
		Items: []model.OrderItem{
			{ProductID: "P1", Quantity: 2, UnitCents: 1000},
		},
	}

	require.NoError(t, p.PublishOrderCreated(context.Background(), o))

	assert.Equal(t, OrderCreatedQueue, ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.Equal(t, "order-1", ch.msg.MessageId)

	var ev OrderCreated
	require.NoError(t, json.Unmarshal(ch.msg.Body, &ev))
	assert.Equal(t, "OrderCreated", ev.EventType)
	assert.Equal(t, int64(2099), ev.TotalCents)
	assert.Equal(t, "BANK_DEPOSIT", ev.PaymentMethod)
	assert.Equal(t, []OrderLineItem{{ProductID: "P1", Quantity: 2, UnitCents: 1000}}, ev.Items)
	assert.True(t, fixed.Equal(ev.Timestamp))
}

func TestPublishOrderCreated_PropagatesError(t *testing.T) {
	p := &Publisher{ch: &fakeChannel{err: errors.New("channel closed")}, now: time.Now}

	err := p.PublishOrderCreated(context.Background(), &model.Order{ID: "order-1"})
	assert.Error(t, err)
}
