package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JonMunkholm/studentimport/internal/store"
	"github.com/google/uuid"
)

// ErrRunNotFound is returned when no persisted run has the requested ID.
var ErrRunNotFound = errors.New("import not found")

// Repository is the entity storage the resolver reads and writes.
// Lookups return store.ErrNotFound when nothing matches.
// *store.Queries satisfies it.
type Repository interface {
	ProgramByCode(ctx context.Context, code string) (store.Program, error)
	CreateProgram(ctx context.Context, p store.Program) error
	UpdateProgram(ctx context.Context, p store.Program) error

	LecturerByStaffNumber(ctx context.Context, staffNumber string) (store.Lecturer, error)
	CreateLecturer(ctx context.Context, l store.Lecturer) error
	UpdateLecturer(ctx context.Context, l store.Lecturer) error

	UserByStaffNumber(ctx context.Context, staffNumber string) (store.User, error)
	CreateUser(ctx context.Context, u store.User) error

	StudentByMatricNumber(ctx context.Context, matric string) (store.Student, error)
	CreateStudent(ctx context.Context, s store.Student) error
	UpdateStudent(ctx context.Context, s store.Student) error

	EvaluationByKey(ctx context.Context, studentID uuid.UUID, semester int, academicYear string) (store.Evaluation, error)
	CreateEvaluation(ctx context.Context, e store.Evaluation) error
	UpdateEvaluation(ctx context.Context, e store.Evaluation) error

	CoSupervisorByLecturer(ctx context.Context, studentID, lecturerID uuid.UUID) (store.CoSupervisor, error)
	CoSupervisorByExternalName(ctx context.Context, studentID uuid.UUID, name string) (store.CoSupervisor, error)
	CreateCoSupervisor(ctx context.Context, c store.CoSupervisor) error
	UpdateCoSupervisor(ctx context.Context, c store.CoSupervisor) error
}

var _ Repository = (*store.Queries)(nil)

// TxRunner scopes fn to a single transaction: commit when fn returns nil,
// rollback otherwise.
type TxRunner interface {
	InTx(ctx context.Context, fn func(Repository) error) error
}

type postgresTx struct {
	db *store.DB
}

// NewPostgresTxRunner adapts a store.DB to TxRunner.
func NewPostgresTxRunner(db *store.DB) TxRunner {
	return postgresTx{db: db}
}

func (p postgresTx) InTx(ctx context.Context, fn func(Repository) error) error {
	return p.db.InTx(ctx, func(q *store.Queries) error {
		return fn(q)
	})
}

// RunRepository persists ImportRuns for audit and polling.
type RunRepository interface {
	SaveRun(ctx context.Context, run *ImportRun) error
	GetRun(ctx context.Context, id string) (*ImportRun, error)
	ListRuns(ctx context.Context, ownerID string, limit int) ([]*ImportRun, error)
}

type postgresRuns struct {
	q *store.Queries
}

// NewPostgresRunRepository stores runs in the import_runs table.
func NewPostgresRunRepository(db *store.DB) RunRepository {
	return postgresRuns{q: db.Queries()}
}

func (p postgresRuns) SaveRun(ctx context.Context, run *ImportRun) error {
	rec, err := runToRecord(run)
	if err != nil {
		return err
	}
	return p.q.SaveRun(ctx, rec)
}

func (p postgresRuns) GetRun(ctx context.Context, id string) (*ImportRun, error) {
	rec, err := p.q.GetRun(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return runFromRecord(rec)
}

func (p postgresRuns) ListRuns(ctx context.Context, ownerID string, limit int) ([]*ImportRun, error) {
	recs, err := p.q.ListRunsByOwner(ctx, ownerID, limit)
	if err != nil {
		return nil, err
	}
	runs := make([]*ImportRun, 0, len(recs))
	for _, rec := range recs {
		run, err := runFromRecord(rec)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func runToRecord(run *ImportRun) (store.ImportRunRecord, error) {
	counters, err := json.Marshal(run.Counters)
	if err != nil {
		return store.ImportRunRecord{}, fmt.Errorf("encode counters: %w", err)
	}
	errs := run.Errors
	if errs == nil {
		errs = []RowError{}
	}
	errsJSON, err := json.Marshal(errs)
	if err != nil {
		return store.ImportRunRecord{}, fmt.Errorf("encode row errors: %w", err)
	}

	return store.ImportRunRecord{
		ID:            run.ID,
		FilePath:      run.FilePath,
		FileName:      run.FileName,
		Extension:     run.Extension,
		OwnerID:       run.OwnerID,
		Status:        string(run.Status),
		TotalRows:     run.TotalRows,
		ProcessedRows: run.ProcessedRows,
		Counters:      counters,
		Errors:        errsJSON,
		Attempts:      run.Attempts,
		LastError:     run.LastError,
		CreatedAt:     run.CreatedAt,
		StartedAt:     run.StartedAt,
		FinishedAt:    run.FinishedAt,
		UpdatedAt:     run.UpdatedAt,
	}, nil
}

func runFromRecord(rec store.ImportRunRecord) (*ImportRun, error) {
	run := &ImportRun{
		ID:            rec.ID,
		FilePath:      rec.FilePath,
		FileName:      rec.FileName,
		Extension:     rec.Extension,
		OwnerID:       rec.OwnerID,
		Status:        Status(rec.Status),
		TotalRows:     rec.TotalRows,
		ProcessedRows: rec.ProcessedRows,
		Attempts:      rec.Attempts,
		LastError:     rec.LastError,
		CreatedAt:     rec.CreatedAt,
		StartedAt:     rec.StartedAt,
		FinishedAt:    rec.FinishedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
	if len(rec.Counters) > 0 {
		if err := json.Unmarshal(rec.Counters, &run.Counters); err != nil {
			return nil, fmt.Errorf("decode counters of %s: %w", rec.ID, err)
		}
	}
	run.Errors = []RowError{}
	if len(rec.Errors) > 0 {
		if err := json.Unmarshal(rec.Errors, &run.Errors); err != nil {
			return nil, fmt.Errorf("decode row errors of %s: %w", rec.ID, err)
		}
	}
	return run, nil
}
