package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/set-night/audiodesc/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_FIFOOneAtATimeWithCooldown(t *testing.T) {
	const (
		n        = 6
		cooldown = 20 * time.Millisecond
	)
	d := NewDispatcher(cooldown, 16)
	defer d.Stop()

	var (
		mu       sync.Mutex
		order    []int
		inFlight int
		maxSeen  int
		starts   []time.Time
		ends     []time.Time
	)

	// Block the worker so every submission below is queued before any runs.
	gate := make(chan struct{})
	running := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = Submit(context.Background(), d, "gate", func(ctx context.Context) (struct{}, error) {
			close(running)
			<-gate
			return struct{}{}, nil
		})
	}()
	<-running

	for i := 1; i <= n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := Submit(context.Background(), d, "op", func(ctx context.Context) (int, error) {
				mu.Lock()
				inFlight++
				if inFlight > maxSeen {
					maxSeen = inFlight
				}
				order = append(order, i)
				starts = append(starts, time.Now())
				mu.Unlock()

				time.Sleep(2 * time.Millisecond)

				mu.Lock()
				inFlight--
				ends = append(ends, time.Now())
				mu.Unlock()
				return i * 10, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, i*10, got)
		}()
		// Submission order is the order callers reach the queue.
		require.Eventually(t, func() bool { return d.Pending() == i }, time.Second, time.Millisecond)
	}

	close(gate)
	wg.Wait()

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, order)
	assert.Equal(t, 1, maxSeen)
	for i := 1; i < len(starts); i++ {
		assert.GreaterOrEqual(t, starts[i].Sub(ends[i-1]), cooldown)
	}
	assert.Equal(t, uint64(n+1), d.Processed())
}

func TestDispatcher_FailureDoesNotHaltWorker(t *testing.T) {
	d := NewDispatcher(0, 4)
	defer d.Stop()

	boom := errors.New("boom")
	_, err := Submit(context.Background(), d, "fail", func(ctx context.Context) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = Submit(context.Background(), d, "panic", func(ctx context.Context) (string, error) {
		panic("kaboom")
	})
	assert.Error(t, err)

	got, err := Submit(context.Background(), d, "ok", func(ctx context.Context) (string, error) {
		return "fine", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fine", got)
	assert.Equal(t, uint64(3), d.Processed())
}

func TestDispatcher_CooldownAppliesAfterFailure(t *testing.T) {
	const cooldown = 30 * time.Millisecond
	d := NewDispatcher(cooldown, 4)
	defer d.Stop()

	var failedAt time.Time
	_, _ = Submit(context.Background(), d, "fail", func(ctx context.Context) (int, error) {
		failedAt = time.Now()
		return 0, errors.New("x")
	})
	var startedAt time.Time
	_, err := Submit(context.Background(), d, "next", func(ctx context.Context) (int, error) {
		startedAt = time.Now()
		return 1, nil
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, startedAt.Sub(failedAt), cooldown)
}

func TestDispatcher_OperationOutlivesCallerCancel(t *testing.T) {
	d := NewDispatcher(0, 4)
	defer d.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	got, err := Submit(ctx, d, "op", func(opCtx context.Context) (string, error) {
		cancel()
		return "done", opCtx.Err()
	})
	require.NoError(t, err)
	assert.Equal(t, "done", got)
}

func TestDispatcher_FullQueueHonoursContext(t *testing.T) {
	d := NewDispatcher(0, 1)
	defer d.Stop()

	gate := make(chan struct{})
	defer close(gate)
	running := make(chan struct{})
	go func() {
		_, _ = Submit(context.Background(), d, "blocker", func(ctx context.Context) (int, error) {
			close(running)
			<-gate
			return 0, nil
		})
	}()
	<-running

	go func() {
		_, _ = Submit(context.Background(), d, "queued", func(ctx context.Context) (int, error) { return 0, nil })
	}()
	require.Eventually(t, func() bool { return d.Pending() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := Submit(ctx, d, "rejected", func(ctx context.Context) (int, error) { return 0, nil })
	assert.ErrorIs(t, err, domain.ErrQueueFull)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDispatcher_Stop(t *testing.T) {
	d := NewDispatcher(0, 4)
	_, err := Submit(context.Background(), d, "op", func(ctx context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)

	d.Stop()
	d.Stop()

	_, err = Submit(context.Background(), d, "late", func(ctx context.Context) (int, error) { return 1, nil })
	assert.ErrorIs(t, err, domain.ErrDispatcherStopped)
}

func TestDispatcher_StopBeforeStart(t *testing.T) {
	d := NewDispatcher(0, 4)
	d.Stop()
	_, err := Submit(context.Background(), d, "op", func(ctx context.Context) (int, error) { return 1, nil })
	assert.ErrorIs(t, err, domain.ErrDispatcherStopped)
}
