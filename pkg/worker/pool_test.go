package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessesSubmittedItems(t *testing.T) {
	var sum int64
	p := NewPool[int](2, 16, func(_ context.Context, n int) error {
		atomic.AddInt64(&sum, int64(n))
		return nil
	})
	p.Start(context.Background())

	for i := 1; i <= 10; i++ {
		require.NoError(t, p.Submit(i))
	}
	p.Stop()

	assert.Equal(t, int64(55), atomic.LoadInt64(&sum))
	submitted, processed, failed, dropped := p.Stats()
	assert.Equal(t, int64(10), submitted)
	assert.Equal(t, int64(10), processed)
	assert.Zero(t, failed)
	assert.Zero(t, dropped)
}

func TestFailedItemsCounted(t *testing.T) {
	p := NewPool[int](1, 16, func(_ context.Context, n int) error {
		if n%2 == 0 {
			return errors.New("even")
		}
		return nil
	})
	p.Start(context.Background())
	for i := 0; i < 4; i++ {
		require.NoError(t, p.Submit(i))
	}
	p.Stop()

	_, processed, failed, _ := p.Stats()
	assert.Equal(t, int64(2), processed)
	assert.Equal(t, int64(2), failed)
}

func TestSubmitAfterStop(t *testing.T) {
	p := NewPool[int](1, 4, func(context.Context, int) error { return nil })
	p.Start(context.Background())
	p.Stop()
	assert.ErrorIs(t, p.Submit(1), ErrStopped)
}

func TestQueueFullDrops(t *testing.T) {
	block := make(chan struct{})
	p := NewPool[int](1, 1, func(_ context.Context, _ int) error {
		<-block
		return nil
	})
	p.Start(context.Background())

	// First item occupies the worker, second fills the queue
	require.NoError(t, p.Submit(1))
	// Give the worker time to pick up the first item
	assert.Eventually(t, func() bool { return p.Submit(2) == nil }, time.Second, time.Millisecond)

	err := p.Submit(3)
	assert.ErrorIs(t, err, ErrQueueFull)

	close(block)
	p.Stop()
}

func TestNilProcessorPanics(t *testing.T) {
	assert.Panics(t, func() { NewPool[int](1, 1, nil) })
}
