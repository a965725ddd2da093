package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper periodically clears idle sessions so their remote files are
// deleted even when the user never comes back.
type Sweeper struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	sweep  func(ctx context.Context) (int, error)
}

// NewSweeper validates schedule (cron spec or "@every 5m") and registers sweep.
func NewSweeper(schedule string, sweep func(ctx context.Context) (int, error)) (*Sweeper, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Sweeper{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		ctx:    ctx,
		cancel: cancel,
		sweep:  sweep,
	}
	if _, err := s.cron.AddFunc(schedule, s.Run); err != nil {
		cancel()
		return nil, fmt.Errorf("parse sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Run performs one sweep.
func (s *Sweeper) Run() {
	start := time.Now()
	n, err := s.sweep(s.ctx)
	if err != nil {
		slog.Error("session sweep failed", "error", err, "cleared", n)
		return
	}
	if n > 0 {
		slog.Info("idle sessions swept", "cleared", n, "duration", time.Since(start))
	}
}

func (s *Sweeper) Start() {
	s.cron.Start()
	slog.Info("session sweeper started", "entries", len(s.cron.Entries()))
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.cancel()
}
