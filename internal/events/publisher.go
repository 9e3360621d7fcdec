// Package events публикует доменные события заказов в RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mmeshcher/storefront-checkout/internal/model"
)

// OrderCreatedQueue содержит имя очереди событий о создании заказа.
const OrderCreatedQueue = "order.created"

// OrderCreated описывает событие о создании заказа.
type OrderCreated struct {
	EventType     string          `json:"eventType"`
	OrderID       string          `json:"orderId"`
	Email         string          `json:"email"`
	PaymentMethod string          `json:"paymentMethod"`
	Status        string          `json:"status"`
	Currency      string          `json:"currency"`
	TotalCents    int64           `json:"totalCents"`
	VoucherCode   string          `json:"voucherCode,omitempty"`
	Items         []OrderLineItem `json:"items"`
	Timestamp     time.Time       `json:"timestamp"`
}

// OrderLineItem описывает позицию заказа в событии.
type OrderLineItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	UnitCents int64  `json:"unitCents"`
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher отправляет события в RabbitMQ.
type Publisher struct {
	conn *amqp.Connection
	ch   channel
	now  func() time.Time
}

// NewPublisher подключается к брокеру и объявляет очередь событий.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(OrderCreatedQueue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare %s: %w", OrderCreatedQueue, err)
	}

	return &Publisher{conn: conn, ch: ch, now: time.Now}, nil
}

// Close закрывает канал и соединение.
func (p *Publisher) Close() error {
	if err := p.ch.Close(); err != nil {
		return err
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// PublishOrderCreated публикует событие о созданном заказе.
func (p *Publisher) PublishOrderCreated(ctx context.Context, o *model.Order) error {
	ev := OrderCreated{
		EventType:     "OrderCreated",
		OrderID:       o.ID,
		Email:         o.Contact.Email,
		PaymentMethod: string(o.PaymentMethod),
		Status:        string(o.Status),
		Currency:      o.Currency,
		TotalCents:    o.TotalCents,
		VoucherCode:   o.VoucherCode,
		Timestamp:     p.now().UTC(),
	}
	for _, it := range o.Items {
		ev.Items = append(ev.Items, OrderLineItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitCents: it.UnitCents,
		})
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal OrderCreated: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(pubCtx, "", OrderCreatedQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    o.ID,
		Body:         body,
	})
}
