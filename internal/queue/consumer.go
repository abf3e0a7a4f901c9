package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer runs tasks from the task queue through a Dispatcher.
type Consumer struct {
	url         string
	dispatcher  *Dispatcher
	maxAttempts int
	retryBase   time.Duration
	prefetch    int
	logger      *slog.Logger
}

// NewConsumer returns a Consumer that gives each task maxAttempts tries.
func NewConsumer(url string, d *Dispatcher, maxAttempts int, retryBase time.Duration, logger *slog.Logger) *Consumer {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Consumer{
		url:         url,
		dispatcher:  d,
		maxAttempts: maxAttempts,
		retryBase:   retryBase,
		prefetch:    16,
		logger:      logger,
	}
}

// Run connects to the broker and consumes until ctx is cancelled.  Lost
// connections are redialed with exponential backoff.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("task consumer: dial failed", "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("task consumer: loop ended, reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		c.logger.Warn("task consumer: set QoS failed", "error", err)
	}
	if err := declareTopology(ch, RetryTiers(c.retryBase, c.maxAttempts)); err != nil {
		return err
	}
	msgs, err := ch.Consume(TaskQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.handleDelivery(ctx, ch, d)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, ch *amqp.Channel, d amqp.Delivery) {
	var env Envelope
	if err := json.Unmarshal(d.Body, &env); err != nil {
		c.logger.Error("task consumer: malformed envelope", "error", err)
		c.forward(ctx, ch, DeadQueue, d.Body, amqp.Publishing{ContentType: "application/json"}, d)
		return
	}
	if env.Attempt < 1 {
		env.Attempt = 1
	}

	err := c.dispatcher.Dispatch(ctx, env)
	switch decide(env, err, c.maxAttempts) {
	case outcomeAck:
		_ = d.Ack(false)
	case outcomeRetry:
		delay := RetryDelay(c.retryBase, env.Attempt)
		c.logger.Warn("task failed, scheduling retry",
			"type", env.Type, "attempt", env.Attempt, "retry_in", delay, "error", err)
		env.Attempt++
		body, _ := json.Marshal(env)
		c.forward(ctx, ch, RetryQueueName(delay), body, message(env, body), d)
	case outcomeDead:
		c.logger.Error("task dead-lettered",
			"type", env.Type, "attempt", env.Attempt, "error", err)
		body, _ := json.Marshal(env)
		c.forward(ctx, ch, DeadQueue, body, message(env, body), d)
	}
}

// forward publishes body to queueName and acks the original delivery.
// When the publish fails the delivery is requeued so the task is not
// lost.
func (c *Consumer) forward(ctx context.Context, ch *amqp.Channel, queueName string, body []byte, pub amqp.Publishing, d amqp.Delivery) {
	pub.Body = body
	pub.DeliveryMode = amqp.Persistent
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
		c.logger.Error("task consumer: forward failed", "queue", queueName, "error", err)
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

// sleep waits for d or until ctx is done.  It reports false on
// cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
