// Package orderqueue hands placed orders to the ordering backend over RabbitMQ.
package orderqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"maktaba-storefront/internal/domain"
)

const (
	exchangeName = "orders.events"
	routingKey   = "order.placed"
	queueName    = "order.placed.q"
)

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Confirm(noWait bool) error
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
}

// Rabbit publishes order.placed events with publisher confirms.
type Rabbit struct {
	ch     Channel
	logger *slog.Logger
}

// NewRabbit declares the exchange, queue and binding once at startup.
func NewRabbit(ch Channel, logger *slog.Logger) (*Rabbit, error) {
	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, routingKey, exchangeName, false, nil); err != nil {
		return nil, fmt.Errorf("queue bind: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}
	return &Rabbit{ch: ch, logger: logger}, nil
}

// Place publishes the order and waits for the broker to confirm it.
func (r *Rabbit) Place(ctx context.Context, order domain.Order) error {
	body, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    order.ID,
		Timestamp:    order.PlacedAt,
		Body:         body,
	}
	dc, err := r.ch.PublishWithDeferredConfirmWithContext(ctx, exchangeName, routingKey, false, false, pub)
	if err != nil {
		return fmt.Errorf("%w: publish order: %w", domain.ErrTransientStore, err)
	}
	if dc != nil {
		ok, err := dc.WaitContext(ctx)
		if err != nil {
			return fmt.Errorf("%w: await confirm: %w", domain.ErrTransientStore, err)
		}
		if !ok {
			return fmt.Errorf("%w: broker nacked order %s", domain.ErrTransientStore, order.ID)
		}
	}
	if r.logger != nil {
		r.logger.Info("order published", "order_id", order.ID, "user_id", order.UserID, "lines", len(order.Lines))
	}
	return nil
}

// Dial connects to the broker and opens a channel. The returned close func
// shuts both down.
func Dial(url string) (*amqp.Channel, func(), error) {
	conn, err := amqp.DialConfig(url, amqp.Config{Heartbeat: 10 * time.Second})
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, func() {
		_ = ch.Close()
		_ = conn.Close()
	}, nil
}
