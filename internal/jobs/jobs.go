// Package jobs runs the periodic maintenance work of the server (session
// sweeping, busy feed refresh) on cron schedules.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "mtsched/internal/log"
)

// Func is one unit of scheduled work.
type Func func(ctx context.Context) error

// ErrStillRunning is returned by RunNow when the job is already running,
// either from its schedule or from an earlier RunNow.
var ErrStillRunning = errors.New("jobs: still running")

type job struct {
	name string
	fn   Func
	// running is held for the duration of every run of fn.
	running sync.Mutex
}

// Scheduler wraps a cron instance with named jobs that can also be run on
// demand (e.g. once at startup).
type Scheduler struct {
	ctx  context.Context
	cron *cron.Cron

	mu   sync.Mutex
	jobs map[string]*job
}

// cronLogger adapts the package logger to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}

// New returns a scheduler whose jobs receive ctx. Panicking scheduled runs
// are recovered. A run that starts while the same job is still running,
// from a tick or RunNow, is skipped.
func New(ctx context.Context) *Scheduler {
	l := cronLogger{}
	return &Scheduler{
		ctx: ctx,
		cron: cron.New(
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
		jobs: make(map[string]*job),
	}
}

// ValidateSpec reports whether spec is a standard 5-field cron expression
// (descriptors such as "@hourly" are accepted too).
func ValidateSpec(spec string) error {
	_, err := cron.ParseStandard(spec)
	return err
}

// Add registers fn under name on the given schedule.
func (s *Scheduler) Add(name, spec string, fn Func) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.jobs[name]; dup {
		return fmt.Errorf("jobs: %q already registered", name)
	}
	j := &job{name: name, fn: fn}
	if _, err := s.cron.AddFunc(spec, func() { _ = s.run(j) }); err != nil {
		return fmt.Errorf("jobs: %s: bad schedule %q: %w", name, spec, err)
	}
	s.jobs[name] = j
	appLog.Info("job scheduled", "job", name, "schedule", spec)
	return nil
}

// RunNow runs the named job synchronously. It returns ErrStillRunning
// without calling the job if a scheduled or earlier run has not finished.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("jobs: unknown job %q", name)
	}
	return s.run(j)
}

func (s *Scheduler) run(j *job) error {
	if !j.running.TryLock() {
		appLog.Info("job skipped, previous run still active", "job", j.name)
		return ErrStillRunning
	}
	defer j.running.Unlock()

	start := time.Now()
	err := j.fn(s.ctx)
	if err != nil {
		appLog.Error("job failed", err, "job", j.name, "duration", time.Since(start))
		return err
	}
	appLog.Debug("job done", "job", j.name, "duration", time.Since(start))
	return nil
}

// Start begins firing schedules in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the schedules and waits for running jobs or ctx, whichever
// comes first.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		appLog.Warn("jobs still running at shutdown")
	}
}
