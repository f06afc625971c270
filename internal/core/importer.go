package core

// importer.go drives one attempt of an ImportRun through its state machine:
//
//	pending -> processing -> completed | completed_with_errors | failed
//
// The whole row loop runs inside a single transaction. Row errors are
// recorded on the run and the loop continues; the transaction commits once
// after the last row. Any other error rolls everything back and fails the run.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/studentimport/internal/logging"
	"github.com/JonMunkholm/studentimport/internal/metrics"
	"github.com/JonMunkholm/studentimport/internal/progress"
	"github.com/JonMunkholm/studentimport/internal/tabular"
)

// sideEffectTimeout bounds run persistence and progress publishing.
const sideEffectTimeout = 5 * time.Second

// ImporterDeps holds the collaborators of an Importer.
// Runs and Progress are optional.
type ImporterDeps struct {
	Tx        TxRunner
	Runs      RunRepository
	Progress  progress.Store
	Validator *RowValidator
	Resolver  *Resolver
	Now       func() time.Time
}

// Importer executes import runs. It is safe for concurrent use as long as
// each run is driven by one goroutine.
type Importer struct {
	tx        TxRunner
	validator *RowValidator
	resolver  *Resolver
	rec       recorder
}

// NewImporter creates an importer. Missing validator, resolver and clock
// fall back to defaults.
func NewImporter(deps ImporterDeps) *Importer {
	if deps.Validator == nil {
		deps.Validator = NewRowValidator()
	}
	if deps.Resolver == nil {
		deps.Resolver = NewResolver()
	}
	return &Importer{
		tx:        deps.Tx,
		validator: deps.Validator,
		resolver:  deps.Resolver,
		rec:       newRecorder(deps.Runs, deps.Progress, deps.Now),
	}
}

// Run executes one attempt of run. It returns nil when the run reached
// completed or completed_with_errors, and the triggering error when it
// reached failed.
func (im *Importer) Run(ctx context.Context, run *ImportRun) (err error) {
	logger := logging.ForImport(ctx, run.ID, run.OwnerID, run.FileName)
	start := im.rec.now()

	defer func() {
		if r := recover(); r != nil {
			err = im.fail(ctx, logger, run, start, fmt.Errorf("import panicked: %v", r))
		}
	}()

	im.begin(ctx, run, start)
	logger.Info("import started", "attempt", run.Attempts)

	records, err := tabular.ReadFileContext(ctx, run.FilePath, run.Extension)
	if err != nil {
		return im.fail(ctx, logger, run, start, err)
	}
	run.TotalRows = len(records)
	im.rec.publish(ctx, run, fmt.Sprintf("Read %d rows", len(records)))

	err = im.tx.InTx(ctx, func(repo Repository) error {
		for _, rec := range records {
			if err := ctx.Err(); err != nil {
				return err
			}

			delta, err := im.processRow(ctx, repo, rec)
			switch {
			case IsRowError(err):
				run.Errors = append(run.Errors, RowError{Row: rec.Row, Reason: err.Error(), Record: rec.Map()})
				logger.Debug("row rejected", "row", rec.Row, "reason", err.Error())
				metrics.RecordRow(false)
			case err != nil:
				return err
			default:
				run.Counters.Add(delta)
				metrics.RecordRow(true)
			}

			run.ProcessedRows++
			im.rec.publish(ctx, run, fmt.Sprintf("Processed %d of %d rows", run.ProcessedRows, run.TotalRows))
		}
		return nil
	})
	if err != nil {
		return im.fail(ctx, logger, run, start, err)
	}

	im.complete(ctx, logger, run, start)
	return nil
}

func (im *Importer) processRow(ctx context.Context, repo Repository, rec tabular.Record) (Counters, error) {
	row, err := im.validator.Parse(rec)
	if err != nil {
		return Counters{}, err
	}
	return im.resolver.Resolve(ctx, repo, row)
}

// begin moves the run to processing and clears state left by an earlier attempt.
func (im *Importer) begin(ctx context.Context, run *ImportRun, start time.Time) {
	run.Status = StatusProcessing
	run.StartedAt = &start
	run.FinishedAt = nil
	run.TotalRows = 0
	run.ProcessedRows = 0
	run.Counters = Counters{}
	run.Errors = []RowError{}
	run.LastError = ""

	metrics.RunStarted()
	im.rec.save(ctx, run)
	im.rec.publish(ctx, run, "Import started")
}

func (im *Importer) complete(ctx context.Context, logger *slog.Logger, run *ImportRun, start time.Time) {
	run.Status = StatusCompleted
	message := fmt.Sprintf("Imported %d rows", run.ProcessedRows)
	if len(run.Errors) > 0 {
		run.Status = StatusCompletedWithErrors
		message = fmt.Sprintf("Imported %d rows, %d rejected", run.ProcessedRows-len(run.Errors), len(run.Errors))
	}
	finished := im.rec.now()
	run.FinishedAt = &finished

	for _, kind := range Kinds {
		metrics.RecordEntities(string(kind), "created", run.Counters.Get(kind, true))
		metrics.RecordEntities(string(kind), "updated", run.Counters.Get(kind, false))
	}
	metrics.RunFinished(string(run.Status), finished.Sub(start))

	logger.Info("import finished",
		"status", run.Status,
		"rows", run.TotalRows,
		"rejected", len(run.Errors),
		"duration", finished.Sub(start),
	)
	im.rec.save(ctx, run)
	im.rec.publish(ctx, run, message)
}

// fail marks the run failed. Nothing from this attempt was committed, so
// the counters, row errors and processed count are cleared. The cause is
// returned for retry accounting.
func (im *Importer) fail(ctx context.Context, logger *slog.Logger, run *ImportRun, start time.Time, cause error) error {
	logger.Error("import failed",
		"attempt", run.Attempts,
		"processed", run.ProcessedRows,
		"rejected", len(run.Errors),
		"error", cause,
	)

	run.Status = StatusFailed
	run.ProcessedRows = 0
	run.Counters = Counters{}
	run.Errors = []RowError{}
	run.LastError = FormatUserError(cause)
	finished := im.rec.now()
	run.FinishedAt = &finished

	metrics.RunFinished(string(run.Status), finished.Sub(start))
	im.rec.save(ctx, run)
	im.rec.publish(ctx, run, run.LastError)
	return cause
}

// recorder persists runs and publishes progress. Both are best effort:
// failures are logged and never change the outcome of a run.
type recorder struct {
	runs     RunRepository
	progress progress.Store
	clock    func() time.Time
}

func newRecorder(runs RunRepository, store progress.Store, now func() time.Time) recorder {
	if now == nil {
		now = time.Now
	}
	return recorder{runs: runs, progress: store, clock: now}
}

func (r recorder) now() time.Time {
	return r.clock().UTC()
}

func (r recorder) save(ctx context.Context, run *ImportRun) {
	run.UpdatedAt = r.now()
	if r.runs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if err := r.runs.SaveRun(ctx, run); err != nil {
		logging.FromContext(ctx).Warn("persist import run failed",
			"import_id", run.ID,
			"status", run.Status,
			"error", err,
		)
	}
}

func (r recorder) publish(ctx context.Context, run *ImportRun, message string) {
	run.UpdatedAt = r.now()
	if r.progress == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if err := r.progress.Set(ctx, run.Snapshot(message)); err != nil && !errors.Is(err, context.Canceled) {
		logging.FromContext(ctx).Debug("publish progress failed",
			"import_id", run.ID,
			"error", err,
		)
	}
}
