package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/JonMunkholm/studentimport/internal/logging"
	"github.com/JonMunkholm/studentimport/internal/metrics"
	"github.com/JonMunkholm/studentimport/internal/progress"
	"github.com/cenkalti/backoff/v4"
)

// Runner executes a single attempt of a run. *Importer implements it.
type Runner interface {
	Run(ctx context.Context, run *ImportRun) error
}

// Dispatcher defaults.
const (
	DefaultMaxAttempts    = 3
	DefaultAttemptTimeout = 5 * time.Minute
)

// DispatcherConfig sets the retry envelope around each run. A zero
// RetryDelay retries immediately.
type DispatcherConfig struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	RetryDelay     time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = DefaultAttemptTimeout
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	return c
}

// Dispatcher schedules runs on background workers. Each run gets up to
// MaxAttempts attempts, each bounded by AttemptTimeout. There is no way to
// cancel a run once it has been submitted.
type Dispatcher struct {
	runner  Runner
	limiter *RunLimiter
	cfg     DispatcherConfig
	rec     recorder
}

// NewDispatcher creates a dispatcher. runs and store are optional.
func NewDispatcher(runner Runner, limiter *RunLimiter, runs RunRepository, store progress.Store, cfg DispatcherConfig) *Dispatcher {
	if limiter == nil {
		limiter = NewRunLimiter(DefaultMaxConcurrentImports, DefaultMaxWaitTime)
	}
	return &Dispatcher{
		runner:  runner,
		limiter: limiter,
		cfg:     cfg.withDefaults(),
		rec:     newRecorder(runs, store, nil),
	}
}

// Submit queues job and returns its import ID without waiting for the run.
// It returns ErrTooManyImports when no worker slot frees up in time; in
// that case no run is created. Once accepted, the job's file belongs to the
// dispatcher and is removed when the run reaches a terminal state.
func (d *Dispatcher) Submit(ctx context.Context, job Job) (string, error) {
	if job.FilePath == "" {
		return "", errors.New("import job has no file path")
	}
	if err := d.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	run := NewImportRun(job, d.rec.now())
	d.rec.save(ctx, run)
	d.rec.publish(ctx, run, "Queued")

	// The run outlives the request that submitted it.
	runCtx := logging.WithImportID(context.WithoutCancel(ctx), run.ID)

	go func() {
		defer d.limiter.Release()
		defer func() {
			if r := recover(); r != nil {
				logging.FromContext(runCtx).Error("panic in import worker", "panic", r)
			}
		}()
		defer removeUpload(runCtx, run.FilePath)
		_ = d.execute(runCtx, run)
	}()

	return run.ID, nil
}

// RunSync runs job on the calling goroutine with the same retry envelope.
// The returned run is in a terminal state.
func (d *Dispatcher) RunSync(ctx context.Context, job Job) (*ImportRun, error) {
	run := NewImportRun(job, d.rec.now())
	d.rec.save(ctx, run)
	d.rec.publish(ctx, run, "Queued")

	err := d.execute(logging.WithImportID(ctx, run.ID), run)
	return run, err
}

// Wait blocks until every submitted run has finished or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	return d.limiter.WaitForDrain(ctx)
}

// Status reports worker slot usage.
func (d *Dispatcher) Status() RunLimiterStatus {
	return d.limiter.Status()
}

func (d *Dispatcher) execute(ctx context.Context, run *ImportRun) error {
	logger := logging.FromContext(ctx)

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(d.cfg.RetryDelay), uint64(d.cfg.MaxAttempts-1)),
		ctx,
	)

	attempt := func() error {
		run.Attempts++

		attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.AttemptTimeout)
		defer cancel()

		err := d.runner.Run(attemptCtx, run)
		metrics.RecordAttempt(err == nil)
		if err == nil {
			return nil
		}

		logger.Warn("import attempt failed",
			"attempt", run.Attempts,
			"max_attempts", d.cfg.MaxAttempts,
			"error", err,
		)
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(attempt, policy)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("import %s: %w", run.ID, err)
	default:
		return fmt.Errorf("import %s failed after %d attempts: %w", run.ID, run.Attempts, err)
	}
}

// removeUpload deletes a finished run's file.
func removeUpload(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.FromContext(ctx).Warn("remove upload failed", "path", path, "error", err)
	}
}
