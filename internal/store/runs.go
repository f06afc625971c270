package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const runColumns = `id, file_path, file_name, extension, owner_id, status, total_rows, processed_rows,
       counters, errors, attempts, last_error, created_at, started_at, finished_at, updated_at`

func scanRun(row interface{ Scan(...any) error }) (ImportRunRecord, error) {
	var r ImportRunRecord
	err := row.Scan(
		&r.ID, &r.FilePath, &r.FileName, &r.Extension, &r.OwnerID, &r.Status,
		&r.TotalRows, &r.ProcessedRows, &r.Counters, &r.Errors, &r.Attempts,
		&r.LastError, &r.CreatedAt, &r.StartedAt, &r.FinishedAt, &r.UpdatedAt,
	)
	return r, err
}

const saveRun = `
INSERT INTO import_runs (id, file_path, file_name, extension, owner_id, status, total_rows,
                         processed_rows, counters, errors, attempts, last_error, created_at,
                         started_at, finished_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now())
ON CONFLICT (id) DO UPDATE SET
    status         = EXCLUDED.status,
    total_rows     = EXCLUDED.total_rows,
    processed_rows = EXCLUDED.processed_rows,
    counters       = EXCLUDED.counters,
    errors         = EXCLUDED.errors,
    attempts       = EXCLUDED.attempts,
    last_error     = EXCLUDED.last_error,
    started_at     = EXCLUDED.started_at,
    finished_at    = EXCLUDED.finished_at,
    updated_at     = now()`

// SaveRun inserts or replaces the mutable state of an import run.
func (q *Queries) SaveRun(ctx context.Context, r ImportRunRecord) error {
	counters, errs := r.Counters, r.Errors
	if len(counters) == 0 {
		counters = []byte("{}")
	}
	if len(errs) == 0 {
		errs = []byte("[]")
	}

	_, err := q.db.Exec(ctx, saveRun,
		r.ID, r.FilePath, r.FileName, r.Extension, r.OwnerID, r.Status, r.TotalRows,
		r.ProcessedRows, counters, errs, r.Attempts, r.LastError, r.CreatedAt,
		r.StartedAt, r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("save import run %s: %w", r.ID, err)
	}
	return nil
}

const getRun = `SELECT ` + runColumns + ` FROM import_runs WHERE id = $1`

func (q *Queries) GetRun(ctx context.Context, id string) (ImportRunRecord, error) {
	r, err := scanRun(q.db.QueryRow(ctx, getRun, id))
	if err != nil {
		return ImportRunRecord{}, notFound(err)
	}
	return r, nil
}

const listRunsByOwner = `
SELECT ` + runColumns + `
FROM import_runs
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT $2`

// ListRunsByOwner returns the most recent runs of one owner, newest first.
func (q *Queries) ListRunsByOwner(ctx context.Context, ownerID string, limit int) ([]ImportRunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := q.db.Query(ctx, listRunsByOwner, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list import runs: %w", err)
	}

	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ImportRunRecord, error) {
		return scanRun(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan import runs: %w", err)
	}
	return runs, nil
}
