package service

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Tasks runs best-effort background work. Failures are logged and never
// reach the code that scheduled them. Nothing is retried.
type Tasks struct {
	wg sync.WaitGroup
}

func NewTasks() *Tasks {
	return &Tasks{}
}

// Go starts fn without waiting for it.
func (t *Tasks) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic recovered in background task",
					"task", name,
					"panic", r,
					"stack", string(debug.Stack()),
				)
			}
		}()
		if err := fn(ctx); err != nil {
			slog.Warn("background task failed", "task", name, "error", err)
		}
	}()
}

// Wait blocks until every started task has returned or ctx ends.
func (t *Tasks) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait background tasks: %w", ctx.Err())
	}
}
