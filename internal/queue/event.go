// Package queue carries background tasks over RabbitMQ.  Every message
// is an Envelope naming the task type, its JSON payload and the delivery
// attempt.  Failed tasks go to a delay queue and come back after a
// backoff; tasks that keep failing end up in a dead-letter queue.
package queue

import (
	"encoding/json"
	"fmt"
)

// Task types.
const (
	TaskOrderCompleted = "order.completed"
	TaskReviewChanged  = "review.changed"
)

// Envelope is the wire format of every task message.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Attempt int             `json:"attempt"`
}

// NewEnvelope marshals payload into a first-attempt envelope.
func NewEnvelope(taskType string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", taskType, err)
	}
	return Envelope{Type: taskType, Payload: b, Attempt: 1}, nil
}

// OrderCompletedTask is enqueued when an order transitions to completed.
// PreviousState lets the worker skip replays of an already completed
// order.  Resume is set when the order was already completed but never
// fulfilled, e.g. because the first enqueue failed; the worker then
// relies on the fulfillment claim alone.
type OrderCompletedTask struct {
	OrderID       uint64 `json:"order_id"`
	PreviousState string `json:"previous_state"`
	Resume        bool   `json:"resume,omitempty"`
}

// ReviewChangedTask is enqueued after a review is created or deleted.
type ReviewChangedTask struct {
	TargetKind string `json:"target_kind"`
	TargetID   uint64 `json:"target_id"`
}
