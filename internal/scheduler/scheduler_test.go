package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestEvery_RejectsNonPositivePeriod(t *testing.T) {
	s := New(discard)
	assert.Error(t, s.Every("flush", 0, func(context.Context) {}))
}

func TestEvery_RunsTaskAndSurvivesPanic(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for cron ticks")
	}
	s := New(discard)

	var runs, panics atomic.Int32
	require.NoError(t, s.Every("count", time.Second, func(context.Context) { runs.Add(1) }))
	require.NoError(t, s.Every("boom", time.Second, func(context.Context) {
		panics.Add(1)
		panic("task failure")
	}))
	s.Start()

	assert.Eventually(t, func() bool { return runs.Load() >= 2 && panics.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestEvery_DoesNotOverlapItself(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for cron ticks")
	}
	s := New(discard)

	var active, maxActive, runs atomic.Int32
	require.NoError(t, s.Every("slow", time.Second, func(context.Context) {
		n := active.Add(1)
		if n > maxActive.Load() {
			maxActive.Store(n)
		}
		runs.Add(1)
		time.Sleep(1500 * time.Millisecond)
		active.Add(-1)
	}))
	s.Start()

	time.Sleep(4 * time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	assert.GreaterOrEqual(t, runs.Load(), int32(1))
	assert.Equal(t, int32(1), maxActive.Load())
}

func TestStop_CancelsTaskContext(t *testing.T) {
	s := New(discard)
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	assert.ErrorIs(t, s.ctx.Err(), context.Canceled)
}
