package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrUnknownTask is returned for envelopes whose type has no handler.
var ErrUnknownTask = errors.New("unknown task type")

// maxRetryDelay caps the exponential backoff between attempts.
const maxRetryDelay = 5 * time.Minute

// HandlerFunc processes one task payload.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

// Dispatcher routes envelopes to the handler registered for their type.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]HandlerFunc)}
}

// Handle registers h for taskType, replacing any previous handler.
func (d *Dispatcher) Handle(taskType string, h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[taskType] = h
}

// Dispatch runs the handler for env.Type.  Unknown types are permanent
// failures.
func (d *Dispatcher) Dispatch(ctx context.Context, env Envelope) error {
	d.mu.RLock()
	h, ok := d.handlers[env.Type]
	d.mu.RUnlock()
	if !ok {
		return Permanent(fmt.Errorf("%w: %q", ErrUnknownTask, env.Type))
	}
	return h(ctx, env.Payload)
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.  The task goes straight to
// the dead-letter queue.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// Decode unmarshals a task payload, marking malformed payloads
// permanent.
func Decode(payload json.RawMessage, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return Permanent(fmt.Errorf("decode payload: %w", err))
	}
	return nil
}

// RetryDelay returns base * 2^(attempt-1), capped at five minutes.
func RetryDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	if d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}

// outcome is what the worker does with a processed task.
type outcome int

const (
	outcomeAck outcome = iota
	outcomeRetry
	outcomeDead
)

// decide picks the outcome of a task that returned err on env.Attempt.
func decide(env Envelope, err error, maxAttempts int) outcome {
	switch {
	case err == nil:
		return outcomeAck
	case IsPermanent(err), env.Attempt >= maxAttempts:
		return outcomeDead
	default:
		return outcomeRetry
	}
}
