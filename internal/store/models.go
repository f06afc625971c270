package store

import (
	"time"

	"github.com/google/uuid"
)

// Program is keyed by Code.
type Program struct {
	ID        uuid.UUID
	Code      string
	Name      string
	Faculty   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Lecturer is keyed by StaffNumber. Email is descriptive and may change.
type Lecturer struct {
	ID          uuid.UUID
	StaffNumber string
	Name        string
	Email       string
	Department  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// User is the login account of a lecturer, keyed by StaffNumber.
type User struct {
	ID           uuid.UUID
	StaffNumber  string
	Email        string
	Name         string
	PasswordHash string
	Role         string
	LecturerID   *uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Student is keyed by MatricNumber.
type Student struct {
	ID            uuid.UUID
	MatricNumber  string
	Name          string
	Email         string
	ProgramID     uuid.UUID
	SupervisorID  uuid.UUID
	ResearchTitle string
	IntakeYear    *int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Evaluation is keyed by (StudentID, Semester, AcademicYear).
type Evaluation struct {
	ID               uuid.UUID
	StudentID        uuid.UUID
	Semester         int
	AcademicYear     string
	EvaluationType   string
	NominationStatus string
	Examiner1ID      *uuid.UUID
	Examiner2ID      *uuid.UUID
	ChairpersonID    *uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CoSupervisor links a student to an internal lecturer (LecturerID set)
// or to an external person (LecturerID nil, ExternalName set).
type CoSupervisor struct {
	ID                  uuid.UUID
	StudentID           uuid.UUID
	LecturerID          *uuid.UUID
	ExternalName        string
	ExternalInstitution string
	Role                string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ImportRunRecord is the persisted form of an import run.
// Counters and Errors hold JSON documents.
type ImportRunRecord struct {
	ID            string
	FilePath      string
	FileName      string
	Extension     string
	OwnerID       string
	Status        string
	TotalRows     int
	ProcessedRows int
	Counters      []byte
	Errors        []byte
	Attempts      int
	LastError     string
	CreatedAt     time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
	UpdatedAt     time.Time
}
