package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler triggers a full refresh at a fixed interval, with one immediate
// refresh at startup. All triggers funnel through the Refresher's
// single-flight guard, so a slow cycle and the next tick never overlap.
type Scheduler struct {
	refresher *Refresher
	interval  time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewScheduler(refresher *Refresher, interval time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		refresher: refresher,
		interval:  interval,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runRefresh()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.runRefresh()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) runRefresh() {
	result, err := s.refresher.RefreshAll(s.ctx)
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		slog.Error("Scheduled refresh failed", "saved", result.Saved, "error", err)
		return
	}
	slog.Debug("Scheduled refresh finished", "saved", result.Saved, "skipped", result.Skipped)
}
