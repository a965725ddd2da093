package service

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/audiodesc/internal/domain"
)

// Dispatcher runs provider calls one at a time, in submission order, with a
// fixed cooldown after each call. Construct it once and share it.
type Dispatcher struct {
	cooldown time.Duration
	queue    chan *workItem

	mu        sync.RWMutex
	stopped   bool
	started   bool
	startOnce sync.Once
	quit      chan struct{}
	done      chan struct{}

	processed atomic.Uint64
}

type workItem struct {
	id         uuid.UUID
	name       string
	ctx        context.Context
	run        func(ctx context.Context) error
	err        error
	enqueuedAt time.Time
	done       chan struct{}
}

// NewDispatcher creates a dispatcher. The worker starts on first Submit.
// A full queue blocks submitters until there is room or their context ends.
func NewDispatcher(cooldown time.Duration, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Dispatcher{
		cooldown: cooldown,
		queue:    make(chan *workItem, queueSize),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Submit enqueues op and waits for the worker to run it. Once enqueued the
// operation runs to completion; cancelling ctx only aborts waiting for room
// in the queue.
func Submit[T any](ctx context.Context, d *Dispatcher, name string, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	item := &workItem{
		id:   uuid.New(),
		name: name,
		ctx:  context.WithoutCancel(ctx),
		run: func(ctx context.Context) error {
			var err error
			result, err = op(ctx)
			return err
		},
		done: make(chan struct{}),
	}

	if err := d.enqueue(ctx, item); err != nil {
		var zero T
		return zero, err
	}
	<-item.done
	if item.err != nil {
		var zero T
		return zero, item.err
	}
	return result, nil
}

// Processed returns the number of work items the worker has finished.
func (d *Dispatcher) Processed() uint64 {
	return d.processed.Load()
}

// Pending returns the number of queued items not yet picked up.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Stop lets the in-flight item finish, fails everything still queued with
// domain.ErrDispatcherStopped and rejects further submissions.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	started := d.started
	d.mu.Unlock()

	close(d.quit)
	if started {
		<-d.done
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, item *workItem) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return domain.ErrDispatcherStopped
	}
	d.startOnce.Do(func() {
		d.started = true
		go d.loop()
	})

	item.enqueuedAt = time.Now()
	select {
	case d.queue <- item:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", domain.ErrQueueFull, ctx.Err())
	}
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for {
		select {
		case <-d.quit:
			d.drain()
			return
		case item := <-d.queue:
			d.execute(item)
			if !d.pause() {
				d.drain()
				return
			}
		}
	}
}

func (d *Dispatcher) execute(item *workItem) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic recovered in dispatched operation",
				"op", item.name,
				"id", item.id,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			item.err = fmt.Errorf("%s: panic: %v", item.name, r)
		}
		d.processed.Add(1)
		close(item.done)
	}()

	item.err = item.run(item.ctx)

	attrs := []any{
		"op", item.name,
		"id", item.id,
		"waited", start.Sub(item.enqueuedAt),
		"duration", time.Since(start),
	}
	if item.err != nil {
		slog.Warn("dispatched operation failed", append(attrs, "error", item.err)...)
		return
	}
	slog.Debug("dispatched operation done", attrs...)
}

func (d *Dispatcher) pause() bool {
	if d.cooldown <= 0 {
		return true
	}
	t := time.NewTimer(d.cooldown)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-d.quit:
		return false
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case item := <-d.queue:
			item.err = domain.ErrDispatcherStopped
			close(item.done)
		default:
			return
		}
	}
}
