// Package scheduler runs a job on a fixed interval with a re-entrancy
// guard, so a slow cycle is never overlapped by the next one and tests
// can drive cycles synchronously without wall-clock waits.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arkodell/cpmi/internal/logger"
)

// Job is one scheduled cycle. The returned error is passed to the
// runner's result callback; it does not stop the schedule.
type Job func(ctx context.Context) error

// Runner ticks a job on a fixed interval.
type Runner struct {
	interval time.Duration
	job      Job
	onResult func(error)

	running atomic.Bool
	started atomic.Bool
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// New creates a Runner. onResult may be nil.
func New(interval time.Duration, job Job, onResult func(error)) *Runner {
	if onResult == nil {
		onResult = func(error) {}
	}
	return &Runner{
		interval: interval,
		job:      job,
		onResult: onResult,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the job once immediately, then on every interval until
// Stop is called or ctx is cancelled. It returns after spawning the
// schedule goroutine.
func (r *Runner) Start(ctx context.Context) {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(r.done)

		r.RunOnce(ctx)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stop:
				return
			case <-ticker.C:
				r.RunOnce(ctx)
			}
		}
	}()
}

// RunOnce executes one cycle synchronously. If a cycle is already in
// flight the call is skipped and reports false; there are never two
// concurrent cycles.
func (r *Runner) RunOnce(ctx context.Context) bool {
	if !r.running.CompareAndSwap(false, true) {
		logger.Warn("Previous cycle still running; skipping this tick")
		return false
	}
	defer r.running.Store(false)

	r.onResult(r.job(ctx))
	return true
}

// Stop halts the schedule and waits for an in-flight cycle to finish.
// Safe to call more than once.
func (r *Runner) Stop() {
	r.once.Do(func() { close(r.stop) })
	if r.started.Load() {
		<-r.done
	}
}
