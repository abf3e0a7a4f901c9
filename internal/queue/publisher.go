package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher enqueues tasks on RabbitMQ.  It keeps one connection and
// channel open and redials after the broker drops them.  Messages are
// persistent.
type Publisher struct {
	url    string
	logger *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher returns a Publisher for the broker at url.  The
// connection is opened on first use.
func NewPublisher(url string, logger *slog.Logger) *Publisher {
	return &Publisher{url: url, logger: logger}
}

// Enqueue publishes a first-attempt task onto the task queue.
func (p *Publisher) Enqueue(ctx context.Context, taskType string, payload any) error {
	env, err := NewEnvelope(taskType, payload)
	if err != nil {
		return err
	}
	if err := p.publish(ctx, TaskQueue, env); err != nil {
		p.logger.Error("enqueue task failed", "type", taskType, "error", err)
		return err
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, queueName string, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, message(env, body)); err != nil {
		// Drop the channel so the next call redials.
		p.reset()
		return fmt.Errorf("publish to %s: %w", queueName, err)
	}
	return nil
}

// channel returns the open channel, dialing when needed.  Caller holds mu.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if err := declareTopology(ch, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

// message builds the persistent AMQP publishing for env.
func message(env Envelope, body []byte) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         env.Type,
		Body:         body,
	}
}
