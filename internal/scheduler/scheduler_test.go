package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (c *countingSweeper) Sweep(ctx context.Context) (int64, int64, error) {
	c.calls.Add(1)
	return 1, 2, c.err
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNew_RejectsBadSpec(t *testing.T) {
	_, err := New("not a cron spec", &countingSweeper{}, discard())
	require.Error(t, err)
}

func TestRunOnce(t *testing.T) {
	sw := &countingSweeper{}
	s, err := New("0 3 * * *", sw, discard())
	require.NoError(t, err)

	s.RunOnce()
	assert.Equal(t, int32(1), sw.calls.Load())
}

func TestRunOnce_ErrorIsLogged(t *testing.T) {
	sw := &countingSweeper{err: errors.New("db down")}
	s, err := New("@every 1h", sw, discard())
	require.NoError(t, err)

	assert.NotPanics(t, s.RunOnce)
	assert.Equal(t, int32(1), sw.calls.Load())
}

func TestStartStop(t *testing.T) {
	s, err := New("@every 1h", &countingSweeper{}, discard())
	require.NoError(t, err)
	s.Start()
	s.Stop(context.Background())
}
