package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingPublisher struct {
	release chan struct{}

	mu  sync.Mutex
	got []SessionEvent
}

func (b *blockingPublisher) Publish(ctx context.Context, ev SessionEvent) error {
	select {
	case <-b.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.got = append(b.got, ev)
	return nil
}

func (b *blockingPublisher) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.got)
}

func TestAsync_PublishDoesNotWaitForDelivery(t *testing.T) {
	t.Parallel()

	slow := &blockingPublisher{release: make(chan struct{})}
	a := NewAsync(slow, 4, time.Minute, nil)

	start := time.Now()
	require.NoError(t, a.Publish(context.Background(), New(TypeLogin, "1", "user")))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Zero(t, slow.count())

	close(slow.release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Close(ctx))
	assert.Equal(t, 1, slow.count())
}

func TestAsync_DropsWhenQueueIsFull(t *testing.T) {
	t.Parallel()

	slow := &blockingPublisher{release: make(chan struct{})}
	a := NewAsync(slow, 1, time.Minute, nil)

	var dropped int
	for range 10 {
		if err := a.Publish(context.Background(), New(TypeRefresh, "1", "user")); errors.Is(err, ErrQueueFull) {
			dropped++
		}
	}
	assert.GreaterOrEqual(t, dropped, 8, "one in flight, one queued")

	close(slow.release)
	require.NoError(t, a.Close(context.Background()))
	assert.Equal(t, 10-dropped, slow.count())
}

func TestAsync_ReportsDeliveryErrorsAndTimesOut(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var failed []error
	hung := &blockingPublisher{release: make(chan struct{})}
	a := NewAsync(hung, 4, 20*time.Millisecond, func(_ SessionEvent, err error) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, err)
	})

	require.NoError(t, a.Publish(context.Background(), New(TypeLogout, "1", "user")))
	require.NoError(t, a.Close(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, failed, 1)
	assert.ErrorIs(t, failed[0], context.DeadlineExceeded)
}

func TestAsync_PublishAfterClose(t *testing.T) {
	t.Parallel()

	a := NewAsync(Nop{}, 1, time.Second, nil)
	require.NoError(t, a.Close(context.Background()))
	require.NoError(t, a.Close(context.Background()), "close is idempotent")
	assert.ErrorIs(t, a.Publish(context.Background(), New(TypeLogin, "1", "user")), ErrClosed)
}
