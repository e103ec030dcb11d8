package messaging

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/streadway/amqp"

	"github.com/xenking/dash-orders/internal/domain/order"
)

var _ order.EventPublisher = (*Publisher)(nil)

// Config holds broker connection details.
type Config struct {
	URL      string
	Exchange string
}

// channel is the part of *amqp.Channel used by Publisher.
type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends order events to a durable topic exchange. The routing key
// is the event type, so consumers bind to "order.created", "order.*" and so on.
type Publisher struct {
	exchange string
	conn     *amqp.Connection

	// mu serialises publishes; an AMQP channel is not safe for concurrent use.
	mu sync.Mutex
	ch channel
}

// Dial connects to the broker and declares the exchange.
func Dial(cfg Config) (*Publisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "dial broker")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "open channel")
	}
	if err := ch.ExchangeDeclare(
		cfg.Exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errors.Wrapf(err, "declare exchange %q", cfg.Exchange)
	}
	return &Publisher{exchange: cfg.Exchange, conn: conn, ch: ch}, nil
}

// Publish implements order.EventPublisher.
func (p *Publisher) Publish(ctx context.Context, ev order.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.OrderID + ":" + string(ev.Type),
		Timestamp:    ev.OccurredAt,
		Type:         string(ev.Type),
		Body:         EncodeEvent(ev),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Publish(p.exchange, string(ev.Type), false, false, msg); err != nil {
		return errors.Wrapf(err, "publish %s", ev.Type)
	}
	return nil
}

// Ping reports whether the broker connection is still open.
func (p *Publisher) Ping(context.Context) error {
	if p.conn != nil && p.conn.IsClosed() {
		return errors.New("broker connection closed")
	}
	return nil
}

// Close closes the channel and the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	chErr := p.ch.Close()
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return errors.Wrap(err, "close connection")
		}
	}
	if chErr != nil {
		return errors.Wrap(chErr, "close channel")
	}
	return nil
}
