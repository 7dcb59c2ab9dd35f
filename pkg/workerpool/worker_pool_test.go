package workerpool

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestStartStopLifecycle(t *testing.T) {
	pool := New(Config{MaxWorkers: 2}, discardLogger())
	require.NoError(t, pool.Start())
	require.NoError(t, pool.Start()) // idempotent
	require.NoError(t, pool.Stop())
	require.NoError(t, pool.Stop()) // idempotent
}

func TestSubmitExecutesTask(t *testing.T) {
	pool := New(Config{MaxWorkers: 2}, discardLogger())
	require.NoError(t, pool.Start())
	defer pool.Stop()

	var ran int64
	done := make(chan struct{})
	err := pool.Submit(Task{
		ID: "t1",
		Execute: func(ctx context.Context) error {
			atomic.StoreInt64(&ran, 1)
			close(done)
			return nil
		},
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run in time")
	}
	assert.EqualValues(t, 1, atomic.LoadInt64(&ran))
}

func TestSubmitBeforeStartFails(t *testing.T) {
	pool := New(Config{MaxWorkers: 1}, discardLogger())
	err := pool.Submit(Task{ID: "t1", Execute: func(ctx context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrPoolNotRunning)
}

func TestPanicInTaskBecomesFailedNotCrash(t *testing.T) {
	pool := New(Config{MaxWorkers: 1}, discardLogger())
	require.NoError(t, pool.Start())
	defer pool.Stop()

	done := make(chan struct{})
	require.NoError(t, pool.Submit(Task{
		ID: "panicker",
		Execute: func(ctx context.Context) error {
			defer close(done)
			panic("boom")
		},
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("panicking task never returned control to the worker")
	}

	// pool must still accept and run further tasks after a panic
	var ran int64
	done2 := make(chan struct{})
	require.NoError(t, pool.Submit(Task{
		ID: "t2",
		Execute: func(ctx context.Context) error {
			atomic.StoreInt64(&ran, 1)
			close(done2)
			return nil
		},
	}))
	select {
	case <-done2:
	case <-time.After(2 * time.Second):
		t.Fatal("pool stopped accepting tasks after a panic")
	}
	assert.EqualValues(t, 1, atomic.LoadInt64(&ran))

	time.Sleep(50 * time.Millisecond)
	stats := pool.Stats()
	assert.GreaterOrEqual(t, stats.FailedTasks, int64(1))
}

func TestErroredTaskIncrementsFailedCount(t *testing.T) {
	pool := New(Config{MaxWorkers: 1}, discardLogger())
	require.NoError(t, pool.Start())
	defer pool.Stop()

	done := make(chan struct{})
	require.NoError(t, pool.Submit(Task{
		ID: "failer",
		Execute: func(ctx context.Context) error {
			defer close(done)
			return errors.New("boom")
		},
	}))
	<-done
	time.Sleep(50 * time.Millisecond)

	assert.GreaterOrEqual(t, pool.Stats().FailedTasks, int64(1))
}

func TestStatsReflectsConfiguredWorkerCount(t *testing.T) {
	pool := New(Config{MaxWorkers: 4}, discardLogger())
	require.NoError(t, pool.Start())
	defer pool.Stop()

	stats := pool.Stats()
	assert.Equal(t, 4, stats.MaxWorkers)
	assert.True(t, stats.IsRunning)
}
