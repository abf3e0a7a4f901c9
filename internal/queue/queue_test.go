package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRetryDelay(t *testing.T) {
	base := 5 * time.Second
	assert.Equal(t, 5*time.Second, RetryDelay(base, 1))
	assert.Equal(t, 10*time.Second, RetryDelay(base, 2))
	assert.Equal(t, 40*time.Second, RetryDelay(base, 4))
	assert.Equal(t, 5*time.Minute, RetryDelay(base, 20))
	assert.Equal(t, 5*time.Second, RetryDelay(base, 0))
}

func TestDecide(t *testing.T) {
	env := Envelope{Type: TaskOrderCompleted, Attempt: 1}
	assert.Equal(t, outcomeAck, decide(env, nil, 3))
	assert.Equal(t, outcomeRetry, decide(env, errors.New("db down"), 3))
	assert.Equal(t, outcomeDead, decide(env, Permanent(errors.New("bad")), 3))

	env.Attempt = 3
	assert.Equal(t, outcomeDead, decide(env, errors.New("db down"), 3))
}

func TestDispatcher_RoutesByType(t *testing.T) {
	d := NewDispatcher()
	var got OrderCompletedTask
	d.Handle(TaskOrderCompleted, func(ctx context.Context, payload json.RawMessage) error {
		return Decode(payload, &got)
	})

	env, err := NewEnvelope(TaskOrderCompleted, OrderCompletedTask{OrderID: 42, PreviousState: "pendiente"})
	require.NoError(t, err)
	require.NoError(t, d.Dispatch(context.Background(), env))
	assert.Equal(t, uint64(42), got.OrderID)
	assert.Equal(t, 1, env.Attempt)
}

func TestDispatcher_UnknownTypeIsPermanent(t *testing.T) {
	d := NewDispatcher()
	err := d.Dispatch(context.Background(), Envelope{Type: "nope"})
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestDecode_MalformedPayloadIsPermanent(t *testing.T) {
	var v ReviewChangedTask
	err := Decode(json.RawMessage(`{"target_id":"x"}`), &v)
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
}

func TestInline_RetriesUntilSuccess(t *testing.T) {
	d := NewDispatcher()
	var calls int32
	d.Handle(TaskReviewChanged, func(ctx context.Context, payload json.RawMessage) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	})
	q := NewInline(context.Background(), d, 5, time.Millisecond, discardLogger())

	require.NoError(t, q.Enqueue(context.Background(), TaskReviewChanged, ReviewChangedTask{TargetKind: "course", TargetID: 1}))
	q.Wait()
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestInline_StopsAfterMaxAttempts(t *testing.T) {
	d := NewDispatcher()
	var calls int32
	d.Handle(TaskReviewChanged, func(ctx context.Context, payload json.RawMessage) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("always")
	})
	q := NewInline(context.Background(), d, 2, time.Millisecond, discardLogger())

	require.NoError(t, q.Enqueue(context.Background(), TaskReviewChanged, ReviewChangedTask{}))
	q.Wait()
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestMessage_IsPersistentWithoutPerMessageTTL(t *testing.T) {
	env := Envelope{Type: TaskOrderCompleted, Attempt: 2}
	pub := message(env, []byte("{}"))
	assert.Equal(t, TaskOrderCompleted, pub.Type)
	assert.Equal(t, amqp.Persistent, pub.DeliveryMode)
	assert.Empty(t, pub.Expiration)
}

func TestRetryTiers_OneQueuePerDelay(t *testing.T) {
	tiers := RetryTiers(time.Minute, 6)
	assert.Equal(t, []time.Duration{time.Minute, 2 * time.Minute, 4 * time.Minute, 5 * time.Minute}, tiers)
	assert.Empty(t, RetryTiers(time.Second, 1))

	for _, attempt := range []int{1, 2, 3, 4, 5} {
		assert.Contains(t, tiers, RetryDelay(time.Minute, attempt))
	}
	assert.NotEqual(t, RetryQueueName(time.Second), RetryQueueName(5*time.Minute))
	assert.Equal(t, "course-commerce.tasks.retry.1500ms", RetryQueueName(1500*time.Millisecond))
}

func TestRetryQueueArgs_QueueLevelTTL(t *testing.T) {
	args := retryQueueArgs(2 * time.Second)
	assert.Equal(t, int64(2000), args["x-message-ttl"])
	assert.Equal(t, TaskQueue, args["x-dead-letter-routing-key"])
	assert.Equal(t, "", args["x-dead-letter-exchange"])
}
