// Package notify forwards daemon events to a RabbitMQ exchange.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// Channel is the subset of *amqp091.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Publisher sends JSON events to a topic exchange. Routing keys are
// "fintrack.<event type>".
type Publisher struct {
	conn     *amqp091.Connection
	channel  Channel
	exchange string
	log      *zap.SugaredLogger
}

// Dial connects to url and declares a durable topic exchange.
func Dial(url, exchange string, log *zap.SugaredLogger) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	p := NewPublisher(ch, exchange, log)
	p.conn = conn
	return p, nil
}

// NewPublisher wraps an already-open channel.
func NewPublisher(ch Channel, exchange string, log *zap.SugaredLogger) *Publisher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Publisher{channel: ch, exchange: exchange, log: log}
}

// RoutingKey returns the key an event type is published under.
func RoutingKey(eventType string) string {
	return "fintrack." + eventType
}

// Publish marshals payload and sends it as a persistent message.
func (p *Publisher) Publish(ctx context.Context, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		RoutingKey(eventType),
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Type:         eventType,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}

	p.log.Debugw("published event", "type", eventType, "exchange", p.exchange, "bytes", len(body))
	return nil
}

// Close closes the channel and, when Dial opened it, the connection.
func (p *Publisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
