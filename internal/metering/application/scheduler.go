package application

import (
	"context"
	"log"
	"time"
)

// Runner runs the daily rollup.
type Runner interface {
	Run(ctx context.Context) (RunReport, error)
}

// Scheduler triggers the daily rollup once a day at a fixed UTC time.
type Scheduler struct {
	runner  Runner
	dailyAt string
	logger  *log.Logger
	lastRun time.Time
}

// NewScheduler constructs a Scheduler. dailyAt uses the "15:04" layout.
func NewScheduler(runner Runner, dailyAt string, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		runner:  runner,
		dailyAt: dailyAt,
		logger:  logger,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.runner == nil {
		return
	}
	if _, _, err := parseDailyAt(s.dailyAt); err != nil {
		s.logger.Printf("daily rollup schedule disabled: daily_at=%q err=%v", s.dailyAt, err)
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Tick(ctx, now.UTC())
		}
	}
}

// Tick runs the job when now matches the configured time and it has not run today.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) bool {
	if !s.shouldRun(now) {
		return false
	}
	s.lastRun = now
	report, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Printf("daily rollup schedule error: run=%s err=%v", report.RunID, err)
	}
	return true
}

func (s *Scheduler) shouldRun(now time.Time) bool {
	hour, minute, err := parseDailyAt(s.dailyAt)
	if err != nil {
		return false
	}
	if now.Hour() != hour || now.Minute() != minute {
		return false
	}
	if !s.lastRun.IsZero() && sameDay(s.lastRun, now) {
		return false
	}
	return true
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func parseDailyAt(value string) (int, int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
