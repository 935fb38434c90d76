// Package tasks schedules the background jobs of the service.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/collabhub/internal/app/system/metrics"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a named unit of periodic work.
type Job struct {
	Name     string
	Interval time.Duration
	// Timeout bounds one run. Zero uses the interval.
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler runs Jobs on a robfig/cron clock. A job whose previous run is
// still going is skipped rather than stacked.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger
}

// NewScheduler builds an idle scheduler.
func NewScheduler(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{log: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log: logger,
	}
}

// Add registers job to run every job.Interval.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return errors.New("job needs a name and a run func")
	}
	if job.Interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.Name)
	}
	if _, err := s.cron.AddFunc("@every "+job.Interval.String(), s.wrap(job)); err != nil {
		return fmt.Errorf("job %s: %w", job.Name, err)
	}
	s.log.Info("background job scheduled",
		zap.String("job", job.Name),
		zap.Duration("interval", job.Interval))
	return nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs, or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) wrap(job Job) func() {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = job.Interval
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		start := time.Now()
		err := job.Run(ctx)
		metrics.RecordJob(job.Name, err)
		if err != nil {
			s.log.Error("background job failed",
				zap.String("job", job.Name),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
			return
		}
		s.log.Debug("background job finished",
			zap.String("job", job.Name),
			zap.Duration("elapsed", time.Since(start)))
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
