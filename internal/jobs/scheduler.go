package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"reputest/internal/logging"
	"reputest/internal/schedule"
)

// Pass is one ingestion pass.
type Pass interface {
	RunOnce(ctx context.Context) error
}

// Scheduler runs a Pass immediately and then on every tick. Passes never overlap.
type Scheduler struct {
	pass     Pass
	interval time.Duration
	align    bool
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(pass Pass, interval time.Duration, align bool, logger *zap.Logger) *Scheduler {
	return &Scheduler{pass: pass, interval: interval, align: align, logger: logging.OrNop(logger)}
}

// Start launches the loop. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()
}

// Stop asks the loop to exit and waits for an in-flight pass to finish its
// current request.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		if err := s.pass.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("scheduled pass failed", zap.Error(err))
		}
		next := schedule.NextTick(time.Now(), s.interval, s.align)
		s.logger.Info("next pass scheduled", zap.Time("at", next))
		t := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			t.Stop()
			s.logger.Info("scheduler stopped")
			return
		case <-t.C:
		}
	}
}
