package queue

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Queue names.  Retry queues are named after RetryQueue, one per
// backoff tier (see RetryQueueName).
const (
	TaskQueue  = "course-commerce.tasks"
	RetryQueue = "course-commerce.tasks.retry"
	DeadQueue  = "course-commerce.tasks.dead"
)

// RetryQueueName is the retry queue whose messages wait d before going
// back to the task queue.
func RetryQueueName(d time.Duration) string {
	return fmt.Sprintf("%s.%dms", RetryQueue, d.Milliseconds())
}

// RetryTiers lists the distinct delays a task with maxAttempts tries
// can wait between attempts, shortest first.
func RetryTiers(base time.Duration, maxAttempts int) []time.Duration {
	var out []time.Duration
	for a := 1; a < maxAttempts; a++ {
		d := RetryDelay(base, a)
		if len(out) == 0 || out[len(out)-1] != d {
			out = append(out, d)
		}
	}
	return out
}

// retryQueueArgs gives a tier a queue-level TTL and dead-letters expired
// messages back onto the task queue through the default exchange.  All
// messages of a tier share one TTL, so the head always expires first.
func retryQueueArgs(d time.Duration) amqp.Table {
	return amqp.Table{
		"x-message-ttl":             d.Milliseconds(),
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": TaskQueue,
	}
}

// declareTopology declares the task and dead queues plus one retry queue
// per delay in tiers.
func declareTopology(ch *amqp.Channel, tiers []time.Duration) error {
	if _, err := ch.QueueDeclare(TaskQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", TaskQueue, err)
	}
	for _, d := range tiers {
		name := RetryQueueName(d)
		if _, err := ch.QueueDeclare(name, true, false, false, false, retryQueueArgs(d)); err != nil {
			return fmt.Errorf("declare %s: %w", name, err)
		}
	}
	if _, err := ch.QueueDeclare(DeadQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", DeadQueue, err)
	}
	return nil
}
