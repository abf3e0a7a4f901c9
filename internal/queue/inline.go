package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Inline runs tasks in-process on a goroutine with the same retry
// policy as the broker worker.  Tasks are lost if the process exits; it
// is meant for development and tests.
type Inline struct {
	base        context.Context
	dispatcher  *Dispatcher
	maxAttempts int
	retryBase   time.Duration
	logger      *slog.Logger
	wg          sync.WaitGroup
}

// NewInline returns an Inline queue.  Running tasks stop retrying once
// base is cancelled.
func NewInline(base context.Context, d *Dispatcher, maxAttempts int, retryBase time.Duration, logger *slog.Logger) *Inline {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Inline{base: base, dispatcher: d, maxAttempts: maxAttempts, retryBase: retryBase, logger: logger}
}

// Enqueue schedules the task and returns immediately.
func (q *Inline) Enqueue(_ context.Context, taskType string, payload any) error {
	env, err := NewEnvelope(taskType, payload)
	if err != nil {
		return err
	}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.run(env)
	}()
	return nil
}

func (q *Inline) run(env Envelope) {
	for {
		err := q.dispatcher.Dispatch(q.base, env)
		switch decide(env, err, q.maxAttempts) {
		case outcomeAck:
			return
		case outcomeDead:
			q.logger.Error("task dropped", "type", env.Type, "attempt", env.Attempt, "error", err)
			return
		}
		delay := RetryDelay(q.retryBase, env.Attempt)
		q.logger.Warn("task failed, retrying", "type", env.Type, "attempt", env.Attempt, "retry_in", delay, "error", err)
		if !sleep(q.base, delay) {
			return
		}
		env.Attempt++
	}
}

// Wait blocks until every enqueued task has finished.
func (q *Inline) Wait() { q.wg.Wait() }
