package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rabbitmq/amqp091-go"
)

type recordingChannel struct {
	exchange, key string
	msg           amqp091.Publishing
	err           error
	closed        bool
}

func (c *recordingChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	c.exchange, c.key, c.msg = exchange, key, msg
	return c.err
}

func (c *recordingChannel) Close() error {
	c.closed = true
	return nil
}

func TestPublish(t *testing.T) {
	ch := &recordingChannel{}
	p := NewPublisher(ch, "fintrack.events", nil)

	payload := map[string]int{"expenses": 3}
	if err := p.Publish(context.Background(), "records_delta", payload); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if ch.exchange != "fintrack.events" || ch.key != "fintrack.records_delta" {
		t.Errorf("published to %s/%s", ch.exchange, ch.key)
	}
	if ch.msg.DeliveryMode != amqp091.Persistent || ch.msg.ContentType != "application/json" {
		t.Errorf("publishing = %+v", ch.msg)
	}
	var got map[string]int
	if err := json.Unmarshal(ch.msg.Body, &got); err != nil || got["expenses"] != 3 {
		t.Errorf("body = %s (%v)", ch.msg.Body, err)
	}

	if err := p.Close(); err != nil || !ch.closed {
		t.Errorf("Close err=%v closed=%v", err, ch.closed)
	}
}

func TestPublishError(t *testing.T) {
	ch := &recordingChannel{err: errors.New("channel closed")}
	p := NewPublisher(ch, "x", nil)
	if err := p.Publish(context.Background(), "snapshot", struct{}{}); err == nil {
		t.Fatal("expected error")
	}
}
