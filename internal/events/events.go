// Package events publishes domain events to RabbitMQ.
package events

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xenking/chorbazzar/internal/domain/order"
)

const (
	// DefaultExchange is the topic exchange order events go to.
	DefaultExchange = "chorbazzar.events"
	// OrderPlacedRoutingKey routes OrderPlaced events.
	OrderPlacedRoutingKey = "order.placed.v1"

	publishTimeout = 3 * time.Second
)

var _ order.Publisher = (*Publisher)(nil)

// Publisher sends events to a topic exchange over one AMQP channel.
type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	now      func() time.Time
}

// Dial connects to url and declares exchange.
func Dial(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "dial amqp")
	}
	p, err := NewPublisher(conn, exchange)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// NewPublisher opens a channel on conn and declares a durable topic exchange.
func NewPublisher(conn *amqp.Connection, exchange string) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "open channel")
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, errors.Wrapf(err, "declare exchange %s", exchange)
	}
	return &Publisher{ch: ch, exchange: exchange, now: time.Now}, nil
}

// Close closes the channel and, when the publisher dialed it, the connection.
func (p *Publisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// PublishOrderPlaced publishes o as an OrderPlaced event.
func (p *Publisher) PublishOrderPlaced(ctx context.Context, o *order.Order) error {
	body := EncodeOrderPlaced(uuid.New().String(), p.now(), o)

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := p.ch.PublishWithContext(pubCtx, p.exchange, OrderPlacedRoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    o.ID,
		Type:         "OrderPlaced",
		Timestamp:    p.now().UTC(),
		Body:         body,
	})
	if err != nil {
		return errors.Wrapf(err, "publish order %s", o.ID)
	}
	return nil
}

// EncodeOrderPlaced returns the JSON envelope of an OrderPlaced event.
func EncodeOrderPlaced(eventID string, at time.Time, o *order.Order) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("event_id")
	e.Str(eventID)
	e.FieldStart("event_type")
	e.Str("OrderPlaced")
	e.FieldStart("occurred_at")
	e.Str(at.UTC().Format(time.RFC3339Nano))
	e.FieldStart("order_id")
	e.Str(o.ID)
	e.FieldStart("session_id")
	e.Str(o.SessionID)
	e.FieldStart("email")
	e.Str(o.Email)
	e.FieldStart("items")
	order.EncodeItems(e, o.Items)
	e.FieldStart("total")
	e.Num(jx.Num(o.Total.StringFixed(2)))
	if o.PromoCode != "" {
		e.FieldStart("promo_code")
		e.Str(o.PromoCode)
	}
	e.ObjEnd()

	return append([]byte(nil), e.Bytes()...)
}
