package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs named tasks at fixed periods. A task never overlaps itself:
// a tick that arrives while the previous run is still busy is skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(logger *slog.Logger) *Scheduler {
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Every registers fn to run every period. Periods below one second are
// rounded up by cron.
func (s *Scheduler) Every(name string, period time.Duration, fn func(ctx context.Context)) error {
	if period <= 0 {
		return fmt.Errorf("task %s: period must be positive, got %s", name, period)
	}
	s.cron.Schedule(cron.Every(period), cron.FuncJob(func() {
		start := time.Now()
		fn(s.ctx)
		s.logger.Debug("Task finished", "task", name, "duration", time.Since(start))
	}))
	s.logger.Info("Task scheduled", "task", name, "period", period)
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running tasks to return or for ctx to
// end, whichever comes first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	defer s.cancel()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running tasks: %w", ctx.Err())
	}
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
