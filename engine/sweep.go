package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/xraph/eventbus"
)

// sweepParser supports standard 5-field cron and descriptors like "@every 1h".
var sweepParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a sweep schedule expression.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	sched, err := sweepParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: sweep schedule %q: %w", eventbus.ErrInvalidConfig, expr, err)
	}
	return sched, nil
}

// sweeper runs fn every time the schedule fires until stopped. A run
// that overlaps the next tick delays it rather than running twice.
type sweeper struct {
	schedule cronlib.Schedule
	fn       func(ctx context.Context)
	logger   *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func newSweeper(schedule cronlib.Schedule, fn func(ctx context.Context), logger *slog.Logger) *sweeper {
	return &sweeper{
		schedule: schedule,
		fn:       fn,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

func (s *sweeper) start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
}

func (s *sweeper) stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *sweeper) loop(ctx context.Context) {
	defer s.wg.Done()

	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-s.stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.logger.Debug("sweep tick", slog.Time("scheduled_at", next))
			s.fn(ctx)
		}
	}
}
