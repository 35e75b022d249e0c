// Package mq publishes ticket events to a RabbitMQ topic exchange.
package mq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Envelope wraps every payload published to the exchange.
type Envelope struct {
	Event      string          `json:"event"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

func encode(event string, payload any, now time.Time) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal payload")
	}
	return json.Marshal(Envelope{Event: event, OccurredAt: now.UTC(), Payload: raw})
}

// RabbitPublisher publishes JSON events with the event name as routing key.
// A nil *RabbitPublisher is valid and drops everything.
type RabbitPublisher struct {
	conn     *amqp091.Connection
	exchange string
	log      zerolog.Logger

	// amqp channels must not be shared between concurrent publishers
	mu      sync.Mutex
	channel *amqp091.Channel
}

func NewRabbitPublisher(url, exchange string, log zerolog.Logger) (*RabbitPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "dial rabbitmq")
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "open channel")
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "declare exchange")
	}
	return &RabbitPublisher{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		log:      log.With().Str("component", "mq").Str("exchange", exchange).Logger(),
	}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, event string, payload any) error {
	if p == nil {
		return nil
	}
	body, err := encode(event, payload, time.Now())
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx, p.exchange, event, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return errors.Wrapf(err, "publish %s", event)
	}
	p.log.Debug().Str("event", event).Int("bytes", len(body)).Msg("event published")
	return nil
}

func (p *RabbitPublisher) Close() error {
	if p == nil {
		return nil
	}
	if err := p.channel.Close(); err != nil {
		p.log.Warn().Err(err).Msg("close channel")
	}
	return p.conn.Close()
}
