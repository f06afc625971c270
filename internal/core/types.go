package core

import (
	"time"

	"github.com/JonMunkholm/studentimport/internal/progress"
	"github.com/google/uuid"
)

// Status is the lifecycle state of an ImportRun.
type Status string

const (
	StatusPending             Status = "pending"
	StatusProcessing          Status = "processing"
	StatusCompleted           Status = "completed"
	StatusCompletedWithErrors Status = "completed_with_errors"
	StatusFailed              Status = "failed"
)

// Terminal reports whether no further transition can happen within an attempt.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedWithErrors, StatusFailed:
		return true
	}
	return false
}

// Kind names an entity kind for counters and metrics.
type Kind string

const (
	KindProgram      Kind = "program"
	KindLecturer     Kind = "lecturer"
	KindUser         Kind = "user"
	KindStudent      Kind = "student"
	KindEvaluation   Kind = "evaluation"
	KindCoSupervisor Kind = "co_supervisor"
)

// Kinds lists every entity kind in dependency order.
var Kinds = []Kind{KindProgram, KindLecturer, KindUser, KindStudent, KindEvaluation, KindCoSupervisor}

// Counters holds created/updated totals per entity kind.
type Counters struct {
	ProgramsCreated      int `json:"programs_created"`
	ProgramsUpdated      int `json:"programs_updated"`
	LecturersCreated     int `json:"lecturers_created"`
	LecturersUpdated     int `json:"lecturers_updated"`
	UsersCreated         int `json:"users_created"`
	UsersUpdated         int `json:"users_updated"`
	StudentsCreated      int `json:"students_created"`
	StudentsUpdated      int `json:"students_updated"`
	EvaluationsCreated   int `json:"evaluations_created"`
	EvaluationsUpdated   int `json:"evaluations_updated"`
	CoSupervisorsCreated int `json:"co_supervisors_created"`
	CoSupervisorsUpdated int `json:"co_supervisors_updated"`
}

// Add accumulates d into c.
func (c *Counters) Add(d Counters) {
	c.ProgramsCreated += d.ProgramsCreated
	c.ProgramsUpdated += d.ProgramsUpdated
	c.LecturersCreated += d.LecturersCreated
	c.LecturersUpdated += d.LecturersUpdated
	c.UsersCreated += d.UsersCreated
	c.UsersUpdated += d.UsersUpdated
	c.StudentsCreated += d.StudentsCreated
	c.StudentsUpdated += d.StudentsUpdated
	c.EvaluationsCreated += d.EvaluationsCreated
	c.EvaluationsUpdated += d.EvaluationsUpdated
	c.CoSupervisorsCreated += d.CoSupervisorsCreated
	c.CoSupervisorsUpdated += d.CoSupervisorsUpdated
}

// Get returns the created or updated count of one kind.
func (c Counters) Get(kind Kind, created bool) int {
	p := c.slot(kind, created)
	if p == nil {
		return 0
	}
	return *p
}

func (c *Counters) bump(kind Kind, created bool) {
	if p := c.slot(kind, created); p != nil {
		*p++
	}
}

func (c *Counters) slot(kind Kind, created bool) *int {
	switch kind {
	case KindProgram:
		return pick(created, &c.ProgramsCreated, &c.ProgramsUpdated)
	case KindLecturer:
		return pick(created, &c.LecturersCreated, &c.LecturersUpdated)
	case KindUser:
		return pick(created, &c.UsersCreated, &c.UsersUpdated)
	case KindStudent:
		return pick(created, &c.StudentsCreated, &c.StudentsUpdated)
	case KindEvaluation:
		return pick(created, &c.EvaluationsCreated, &c.EvaluationsUpdated)
	case KindCoSupervisor:
		return pick(created, &c.CoSupervisorsCreated, &c.CoSupervisorsUpdated)
	}
	return nil
}

func pick(created bool, c, u *int) *int {
	if created {
		return c
	}
	return u
}

// Map returns the counters keyed as "<kind>s_created" / "<kind>s_updated".
func (c Counters) Map() map[string]int {
	m := make(map[string]int, 2*len(Kinds))
	for _, k := range Kinds {
		m[string(k)+"s_created"] = c.Get(k, true)
		m[string(k)+"s_updated"] = c.Get(k, false)
	}
	return m
}

// RowError is one recorded row failure.
type RowError struct {
	Row    int               `json:"row"`
	Reason string            `json:"reason"`
	Record map[string]string `json:"record,omitempty"`
}

// Job is a request to import one file.
type Job struct {
	ImportID  string
	FilePath  string
	FileName  string
	Extension string
	OwnerID   string
}

// ImportRun is the state of one import. Only the orchestrator mutates it.
type ImportRun struct {
	ID            string     `json:"id"`
	FilePath      string     `json:"-"`
	FileName      string     `json:"file_name"`
	Extension     string     `json:"extension"`
	OwnerID       string     `json:"owner_id"`
	Status        Status     `json:"status"`
	TotalRows     int        `json:"total_rows"`
	ProcessedRows int        `json:"processed_rows"`
	Counters      Counters   `json:"counters"`
	Errors        []RowError `json:"errors"`
	Attempts      int        `json:"attempts"`
	LastError     string     `json:"last_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewImportRun creates a pending run for job. A missing import ID is generated.
func NewImportRun(job Job, now time.Time) *ImportRun {
	id := job.ImportID
	if id == "" {
		id = uuid.NewString()
	}
	return &ImportRun{
		ID:        id,
		FilePath:  job.FilePath,
		FileName:  job.FileName,
		Extension: job.Extension,
		OwnerID:   job.OwnerID,
		Status:    StatusPending,
		Errors:    []RowError{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy safe to hand to another goroutine.
func (r *ImportRun) Clone() *ImportRun {
	c := *r
	c.Errors = append([]RowError(nil), r.Errors...)
	return &c
}

// Snapshot renders the run for polling clients.
func (r *ImportRun) Snapshot(message string) progress.Snapshot {
	items := make([]progress.ErrorItem, len(r.Errors))
	for i, e := range r.Errors {
		items[i] = progress.ErrorItem{Row: e.Row, Reason: e.Reason, Record: e.Record}
	}
	return progress.Snapshot{
		ImportID:  r.ID,
		Status:    string(r.Status),
		Message:   message,
		Processed: r.ProcessedRows,
		Total:     r.TotalRows,
		Percent:   progress.Percent(r.ProcessedRows, r.TotalRows),
		Errors:    items,
		Summary:   r.Counters.Map(),
		UpdatedAt: r.UpdatedAt,
	}
}
