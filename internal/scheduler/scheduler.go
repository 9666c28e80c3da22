// Package scheduler runs the recurring jobs that keep an estate moving:
// daily triggers fired at a local wall-clock time and fixed-interval polls.
// Job bodies never see each other concurrently for the same runner, and a
// failing run is logged and swallowed so one bad cycle cannot stop the rest.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Job is one recurring unit of work.
type Job struct {
	Name string
	Run  func(ctx context.Context) error

	// Interval fires the job on a fixed cadence. Exactly one of Interval
	// or At must be set.
	Interval time.Duration

	// At fires the job once a day at an "HH:MM" local wall-clock time.
	At string
}

// Runner drives a set of jobs until its context is cancelled.
type Runner struct {
	logger  *zap.Logger
	timeout time.Duration
	jobs    []Job

	// mu serializes job bodies so a sweep never races a chat-driven
	// schedule rebuild against the same estate.
	mu sync.Mutex

	now func() time.Time
}

// New builds a Runner. timeout bounds every individual job run.
func New(logger *zap.Logger, timeout time.Duration) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Runner{logger: logger, timeout: timeout, now: time.Now}
}

// Add registers a job. Must be called before Start.
func (r *Runner) Add(job Job) error {
	if job.Name == "" {
		return fmt.Errorf("job needs a name")
	}
	if job.Run == nil {
		return fmt.Errorf("job %s has no body", job.Name)
	}
	if (job.Interval <= 0) == (job.At == "") {
		return fmt.Errorf("job %s must set exactly one of interval or at-time", job.Name)
	}
	if job.At != "" {
		if _, _, err := parseClock(job.At); err != nil {
			return fmt.Errorf("job %s: %w", job.Name, err)
		}
	}
	r.jobs = append(r.jobs, job)
	return nil
}

// Start runs all registered jobs and blocks until ctx is cancelled.
func (r *Runner) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, job := range r.jobs {
		job := job
		g.Go(func() error {
			if job.At != "" {
				r.runDaily(ctx, job)
			} else {
				r.runInterval(ctx, job)
			}
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) runInterval(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.fire(ctx, job)
		}
	}
}

func (r *Runner) runDaily(ctx context.Context, job Job) {
	hour, minute, _ := parseClock(job.At)
	for {
		wait := time.Until(nextAt(r.now(), hour, minute))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			r.fire(ctx, job)
		}
	}
}

// fire runs one job cycle under the shared lock with a bounded context.
func (r *Runner) fire(ctx context.Context, job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()

	runID := uuid.NewString()
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := r.now()
	if err := job.Run(runCtx); err != nil {
		r.logger.Warn("job run failed",
			zap.String("job", job.Name),
			zap.String("run_id", runID),
			zap.Duration("elapsed", r.now().Sub(start)),
			zap.Error(err))
		return
	}
	r.logger.Debug("job run complete",
		zap.String("job", job.Name),
		zap.String("run_id", runID),
		zap.Duration("elapsed", r.now().Sub(start)))
}

// nextAt returns the next occurrence of hour:minute strictly after now,
// in now's location.
func nextAt(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func parseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock time %q, want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in clock time %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in clock time %q", s)
	}
	return hour, minute, nil
}
