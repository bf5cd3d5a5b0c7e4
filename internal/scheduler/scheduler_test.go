package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingRunner struct {
	runs int64
	err  error
}

func (r *countingRunner) Run(ctx context.Context) error {
	atomic.AddInt64(&r.runs, 1)
	return r.err
}

func TestScheduler_RunsImmediatelyAndOnInterval(t *testing.T) {
	runner := &countingRunner{}
	sched := New(runner, 20*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 70*time.Millisecond)
	defer cancel()

	err := sched.Start(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	runs := atomic.LoadInt64(&runner.runs)
	assert.GreaterOrEqual(t, runs, int64(2))
}

func TestScheduler_ContinuesAfterRunError(t *testing.T) {
	runner := &countingRunner{err: assert.AnError}
	sched := New(runner, 20*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 70*time.Millisecond)
	defer cancel()

	err := sched.Start(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	runs := atomic.LoadInt64(&runner.runs)
	assert.GreaterOrEqual(t, runs, int64(2))
}

func TestScheduler_SecondStartIsNoop(t *testing.T) {
	runner := &countingRunner{}
	sched := New(runner, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sched.Start(ctx)
	}()

	// Wait for the immediate run before probing the active flag.
	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&runner.runs) == 1
	}, time.Second, 5*time.Millisecond)

	assert.NoError(t, sched.Start(ctx))

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, int64(1), atomic.LoadInt64(&runner.runs))
}
