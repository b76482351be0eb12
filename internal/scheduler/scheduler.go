// Package scheduler periodically materializes due recurring entries.
package scheduler

import (
	"context"
	"time"

	"github.com/smallbiznis/tracklight/internal/clock"
	"go.uber.org/zap"
)

const defaultInterval = 15 * time.Minute

// Materializer is the slice of the recurring service the scheduler drives.
type Materializer interface {
	MaterializeDue(ctx context.Context, now time.Time) (int, error)
}

type Scheduler struct {
	recurring Materializer
	clock     clock.Clock
	interval  time.Duration
	log       *zap.Logger
	stop      chan struct{}
	done      chan struct{}
}

func New(recurring Materializer, clk clock.Clock, log *zap.Logger) *Scheduler {
	return &Scheduler{
		recurring: recurring,
		clock:     clk,
		interval:  defaultInterval,
		log:       log.Named("scheduler"),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// RunOnce performs a single sweep. Sweeps are idempotent within a calendar
// day, so the interval only bounds how late after midnight a firing can be.
func (s *Scheduler) RunOnce(ctx context.Context) {
	now := s.clock.Now()
	fired, err := s.recurring.MaterializeDue(ctx, now)
	if err != nil {
		s.log.Error("recurring sweep failed", zap.Error(err))
		return
	}
	if fired > 0 {
		s.log.Info("recurring entries materialized", zap.Int("count", fired))
	}
}

// Start launches the sweep loop. The first sweep runs immediately.
func (s *Scheduler) Start() {
	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.RunOnce(context.Background())
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.RunOnce(context.Background())
			}
		}
	}()
}

func (s *Scheduler) Stop(ctx context.Context) error {
	close(s.stop)
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
