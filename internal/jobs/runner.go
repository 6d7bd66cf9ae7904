// Package jobs contains the scheduled batch work of the points engine: the
// decay sweeper, the snapshot recorder and the ballot tabulator, plus the
// fixed-interval Runner that drives them.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

const stopTimeout = 30 * time.Second

// Task is one unit of scheduled work.
type Task func(ctx context.Context) error

// Runner drives a Task on a fixed interval with an immediate first run.
// A tick that arrives while a run is still in flight is dropped, and Stop
// prevents future runs without aborting one already past its commit point.
type Runner struct {
	name     string
	interval time.Duration
	task     Task
	log      logger.Logger

	immediate bool
	inFlight  atomic.Bool

	mu      sync.Mutex
	started bool
	stop    chan struct{}
	done    chan struct{}
}

// RunnerOption applies a configuration option to the Runner.
type RunnerOption func(*Runner)

// WithRunnerLogger sets a custom logger for the runner.
func WithRunnerLogger(log logger.Logger) RunnerOption {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// WithoutImmediateRun skips the run normally fired at Start.
func WithoutImmediateRun() RunnerOption {
	return func(r *Runner) {
		r.immediate = false
	}
}

// NewRunner creates a runner for one named job.
func NewRunner(name string, interval time.Duration, task Task, opts ...RunnerOption) *Runner {
	r := &Runner{
		name:      name,
		interval:  interval,
		task:      task,
		immediate: true,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		log:       logger.Get().Named(name),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the schedule loop. Calling Start twice is a no-op.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	go r.loop(ctx)
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)

	if r.immediate {
		r.RunOnce(ctx)
	}

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
}

// RunOnce executes the task if no run is in flight; a concurrent call is
// dropped. Panics are contained so a bad run only costs one tick.
func (r *Runner) RunOnce(ctx context.Context) {
	if !r.inFlight.CompareAndSwap(false, true) {
		metrics.RecordJobSkip(r.name)
		r.log.Debug(ctx, "run already in flight, skipping tick")
		return
	}
	metrics.SetJobInFlight(r.name, true)
	defer func() {
		r.inFlight.Store(false)
		metrics.SetJobInFlight(r.name, false)
	}()

	start := time.Now()
	err := r.runSafely(ctx)
	elapsed := time.Since(start)

	metrics.ObserveJobDuration(r.name, elapsed.Seconds())
	metrics.RecordJobRun(r.name, err == nil)

	if err != nil {
		r.log.Error(ctx, "job run failed", logger.Error(err), logger.Duration("elapsed", elapsed))
		return
	}
	r.log.Debug(ctx, "job run finished", logger.Duration("elapsed", elapsed))
}

func (r *Runner) runSafely(ctx context.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job %s panicked: %v", r.name, rec)
		}
	}()
	return r.task(ctx)
}

// Stop prevents future scheduled runs and waits for the loop to exit. An
// in-flight run is left to finish; its transactions are resumable either way.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
	case <-time.After(stopTimeout):
		r.log.Warn(context.Background(), "runner stop timed out")
	}
}
