package core

// resolver.go creates or updates the entity chain implied by one row:
// Program, Lecturer, User, Student, Evaluation, CoSupervisor.
//
// Each row is resolved in two phases. Planning performs every lookup and
// reference check and decides what to write; new entities get their IDs
// here. Applying performs the writes in dependency order. A reference that
// cannot be resolved is reported while planning, so a rejected row has
// written nothing. A failed write is an infrastructure error: PostgreSQL
// aborts the surrounding transaction, so the whole run must fail.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/studentimport/internal/store"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// EvaluationPolicy decides how a repeat import treats an existing evaluation.
type EvaluationPolicy string

const (
	// PolicyMerge only overwrites fields that are non-blank in the row.
	PolicyMerge EvaluationPolicy = "merge"
	// PolicyOverwrite replaces every assignment field, clearing blank ones.
	PolicyOverwrite EvaluationPolicy = "overwrite"
)

// ParseEvaluationPolicy maps a config value to a policy, defaulting to merge.
func ParseEvaluationPolicy(s string) EvaluationPolicy {
	if strings.EqualFold(strings.TrimSpace(s), string(PolicyOverwrite)) {
		return PolicyOverwrite
	}
	return PolicyMerge
}

// Default values for newly created rows.
const (
	DefaultNominationStatus = "pending"
	DefaultUserRole         = "lecturer"
	DefaultCoSupervisorRole = "co_supervisor"
)

// ResolutionError reports a row whose references cannot be resolved.
type ResolutionError struct {
	Field  string
	Reason string
}

func (e *ResolutionError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// PasswordHasher derives the stored hash of a default password.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// BcryptHasher hashes with bcrypt at the given cost.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Resolver resolves validated rows against a Repository.
type Resolver struct {
	policy EvaluationPolicy
	hasher PasswordHasher
	newID  func() uuid.UUID
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithEvaluationPolicy sets the repeat-import policy for evaluations.
func WithEvaluationPolicy(p EvaluationPolicy) ResolverOption {
	return func(r *Resolver) { r.policy = p }
}

// WithPasswordHasher replaces the default bcrypt hasher.
func WithPasswordHasher(h PasswordHasher) ResolverOption {
	return func(r *Resolver) { r.hasher = h }
}

// WithIDGenerator replaces uuid.New for new entity IDs.
func WithIDGenerator(fn func() uuid.UUID) ResolverOption {
	return func(r *Resolver) { r.newID = fn }
}

// NewResolver creates a resolver with merge policy and bcrypt hashing by default.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		policy: PolicyMerge,
		hasher: BcryptHasher{Cost: bcrypt.DefaultCost},
		newID:  uuid.New,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// change is one planned write.
type change struct {
	kind    Kind
	created bool
	apply   func(ctx context.Context, repo Repository) error
}

// rowPlan accumulates the writes for one row.
type rowPlan struct {
	repo      Repository
	changes   []change
	lecturers map[string]store.Lecturer
}

func (p *rowPlan) add(kind Kind, created bool, apply func(context.Context, Repository) error) {
	p.changes = append(p.changes, change{kind: kind, created: created, apply: apply})
}

// Resolve plans and applies the writes for row and returns the counter delta.
// A *ResolutionError means nothing was written for the row. Any other error
// comes from the repository and must abort the run.
func (r *Resolver) Resolve(ctx context.Context, repo Repository, row Row) (Counters, error) {
	plan, err := r.plan(ctx, repo, row)
	if err != nil {
		return Counters{}, err
	}

	var delta Counters
	for _, c := range plan.changes {
		if err := c.apply(ctx, repo); err != nil {
			return Counters{}, fmt.Errorf("row %d: write %s: %w", row.Number, c.kind, err)
		}
		delta.bump(c.kind, c.created)
	}
	return delta, nil
}

func (r *Resolver) plan(ctx context.Context, repo Repository, row Row) (*rowPlan, error) {
	p := &rowPlan{repo: repo, lecturers: make(map[string]store.Lecturer)}

	program, err := r.planProgram(ctx, p, row)
	if err != nil {
		return nil, err
	}

	supervisor, err := r.planLecturer(ctx, p, row.Supervisor)
	if err != nil {
		return nil, err
	}

	var coLecturer *store.Lecturer
	if row.CoSupervisor.StaffNumber != "" {
		l, err := r.planLecturer(ctx, p, LecturerRef{
			StaffNumber: row.CoSupervisor.StaffNumber,
			Name:        row.CoSupervisor.Name,
			Email:       row.CoSupervisor.Email,
		})
		if err != nil {
			return nil, err
		}
		coLecturer = &l
	}

	if err := r.planUser(ctx, p, supervisor); err != nil {
		return nil, err
	}

	student, studentIsNew, err := r.planStudent(ctx, p, row, program.ID, supervisor.ID)
	if err != nil {
		return nil, err
	}

	if err := r.planEvaluation(ctx, p, row, student.ID, studentIsNew); err != nil {
		return nil, err
	}

	if row.CoSupervisor.Present() {
		if err := r.planCoSupervisor(ctx, p, row.CoSupervisor, coLecturer, student.ID, studentIsNew); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func (r *Resolver) planProgram(ctx context.Context, p *rowPlan, row Row) (store.Program, error) {
	existing, err := p.repo.ProgramByCode(ctx, row.ProgramCode)
	switch {
	case errors.Is(err, store.ErrNotFound):
		name := row.ProgramName
		if name == "" {
			name = row.ProgramCode
		}
		prog := store.Program{ID: r.newID(), Code: row.ProgramCode, Name: name, Faculty: row.Faculty}
		p.add(KindProgram, true, func(ctx context.Context, repo Repository) error {
			return repo.CreateProgram(ctx, prog)
		})
		return prog, nil
	case err != nil:
		return store.Program{}, fmt.Errorf("find program %s: %w", row.ProgramCode, err)
	}

	updated := existing
	setIfGiven(&updated.Name, row.ProgramName)
	setIfGiven(&updated.Faculty, row.Faculty)
	if updated != existing {
		p.add(KindProgram, false, func(ctx context.Context, repo Repository) error {
			return repo.UpdateProgram(ctx, updated)
		})
	}
	return updated, nil
}

// planLecturer finds or plans the lecturer for ref. Descriptive fields
// are only overwritten when the row supplies them.
func (r *Resolver) planLecturer(ctx context.Context, p *rowPlan, ref LecturerRef) (store.Lecturer, error) {
	if l, ok := p.lecturers[ref.StaffNumber]; ok {
		return l, nil
	}

	existing, err := p.repo.LecturerByStaffNumber(ctx, ref.StaffNumber)
	switch {
	case errors.Is(err, store.ErrNotFound):
		l := store.Lecturer{
			ID:          r.newID(),
			StaffNumber: ref.StaffNumber,
			Name:        ref.Name,
			Email:       ref.Email,
			Department:  ref.Department,
		}
		p.lecturers[l.StaffNumber] = l
		p.add(KindLecturer, true, func(ctx context.Context, repo Repository) error {
			return repo.CreateLecturer(ctx, l)
		})
		return l, nil
	case err != nil:
		return store.Lecturer{}, fmt.Errorf("find lecturer %s: %w", ref.StaffNumber, err)
	}

	updated := existing
	setIfGiven(&updated.Name, ref.Name)
	setIfGiven(&updated.Email, ref.Email)
	setIfGiven(&updated.Department, ref.Department)
	p.lecturers[updated.StaffNumber] = updated
	if updated != existing {
		p.add(KindLecturer, false, func(ctx context.Context, repo Repository) error {
			return repo.UpdateLecturer(ctx, updated)
		})
	}
	return updated, nil
}

// referenceLecturer resolves a staff number that must already exist,
// either in the store or earlier in this row's plan.
func (r *Resolver) referenceLecturer(ctx context.Context, p *rowPlan, field, staffNumber string) (*uuid.UUID, error) {
	if staffNumber == "" {
		return nil, nil
	}
	if l, ok := p.lecturers[staffNumber]; ok {
		id := l.ID
		return &id, nil
	}

	l, err := p.repo.LecturerByStaffNumber(ctx, staffNumber)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &ResolutionError{
			Field:  field,
			Reason: fmt.Sprintf("lecturer with staff number %s does not exist", staffNumber),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("find lecturer %s: %w", staffNumber, err)
	}
	p.lecturers[staffNumber] = l
	id := l.ID
	return &id, nil
}

// planUser creates the supervisor's account on first sight. Existing
// accounts, and their passwords, are never touched.
func (r *Resolver) planUser(ctx context.Context, p *rowPlan, lecturer store.Lecturer) error {
	_, err := p.repo.UserByStaffNumber(ctx, lecturer.StaffNumber)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("find user %s: %w", lecturer.StaffNumber, err)
	}

	hash, err := r.hasher.Hash(lecturer.StaffNumber)
	if err != nil {
		return err
	}
	lecturerID := lecturer.ID
	u := store.User{
		ID:           r.newID(),
		StaffNumber:  lecturer.StaffNumber,
		Email:        lecturer.Email,
		Name:         lecturer.Name,
		PasswordHash: hash,
		Role:         DefaultUserRole,
		LecturerID:   &lecturerID,
	}
	p.add(KindUser, true, func(ctx context.Context, repo Repository) error {
		return repo.CreateUser(ctx, u)
	})
	return nil
}

// planStudent overwrites every descriptive field of an existing student.
func (r *Resolver) planStudent(ctx context.Context, p *rowPlan, row Row, programID, supervisorID uuid.UUID) (store.Student, bool, error) {
	existing, err := p.repo.StudentByMatricNumber(ctx, row.MatricNumber)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s := store.Student{
			ID:            r.newID(),
			MatricNumber:  row.MatricNumber,
			Name:          row.StudentName,
			Email:         row.StudentEmail,
			ProgramID:     programID,
			SupervisorID:  supervisorID,
			ResearchTitle: row.ResearchTitle,
			IntakeYear:    row.IntakeYear,
		}
		p.add(KindStudent, true, func(ctx context.Context, repo Repository) error {
			return repo.CreateStudent(ctx, s)
		})
		return s, true, nil
	case err != nil:
		return store.Student{}, false, fmt.Errorf("find student %s: %w", row.MatricNumber, err)
	}

	updated := existing
	updated.Name = row.StudentName
	updated.Email = row.StudentEmail
	updated.ProgramID = programID
	updated.SupervisorID = supervisorID
	updated.ResearchTitle = row.ResearchTitle
	updated.IntakeYear = row.IntakeYear

	if studentChanged(existing, updated) {
		p.add(KindStudent, false, func(ctx context.Context, repo Repository) error {
			return repo.UpdateStudent(ctx, updated)
		})
	}
	return updated, false, nil
}

func (r *Resolver) planEvaluation(ctx context.Context, p *rowPlan, row Row, studentID uuid.UUID, studentIsNew bool) error {
	examiner1, err := r.referenceLecturer(ctx, p, "examiner1_staff_number", row.Examiner1)
	if err != nil {
		return err
	}
	examiner2, err := r.referenceLecturer(ctx, p, "examiner2_staff_number", row.Examiner2)
	if err != nil {
		return err
	}
	chair, err := r.referenceLecturer(ctx, p, "chairperson_staff_number", row.Chairperson)
	if err != nil {
		return err
	}

	var existing store.Evaluation
	found := false
	if !studentIsNew {
		existing, err = p.repo.EvaluationByKey(ctx, studentID, row.Semester, row.AcademicYear)
		switch {
		case err == nil:
			found = true
		case !errors.Is(err, store.ErrNotFound):
			return fmt.Errorf("find evaluation: %w", err)
		}
	}

	if !found {
		evalType := row.EvaluationType
		if evalType == "" {
			evalType = EvaluationProgress
		}
		e := store.Evaluation{
			ID:               r.newID(),
			StudentID:        studentID,
			Semester:         row.Semester,
			AcademicYear:     row.AcademicYear,
			EvaluationType:   evalType,
			NominationStatus: DefaultNominationStatus,
			Examiner1ID:      examiner1,
			Examiner2ID:      examiner2,
			ChairpersonID:    chair,
		}
		p.add(KindEvaluation, true, func(ctx context.Context, repo Repository) error {
			return repo.CreateEvaluation(ctx, e)
		})
		return nil
	}

	updated := existing
	switch r.policy {
	case PolicyOverwrite:
		updated.EvaluationType = row.EvaluationType
		if updated.EvaluationType == "" {
			updated.EvaluationType = EvaluationProgress
		}
		updated.Examiner1ID = examiner1
		updated.Examiner2ID = examiner2
		updated.ChairpersonID = chair
	default:
		setIfGiven(&updated.EvaluationType, row.EvaluationType)
		if examiner1 != nil {
			updated.Examiner1ID = examiner1
		}
		if examiner2 != nil {
			updated.Examiner2ID = examiner2
		}
		if chair != nil {
			updated.ChairpersonID = chair
		}
	}

	if evaluationChanged(existing, updated) {
		p.add(KindEvaluation, false, func(ctx context.Context, repo Repository) error {
			return repo.UpdateEvaluation(ctx, updated)
		})
	}
	return nil
}

func (r *Resolver) planCoSupervisor(ctx context.Context, p *rowPlan, ref CoSupervisorRef, lecturer *store.Lecturer, studentID uuid.UUID, studentIsNew bool) error {
	var (
		existing store.CoSupervisor
		err      error = store.ErrNotFound
	)
	if !studentIsNew {
		if lecturer != nil {
			existing, err = p.repo.CoSupervisorByLecturer(ctx, studentID, lecturer.ID)
		} else {
			existing, err = p.repo.CoSupervisorByExternalName(ctx, studentID, ref.Name)
		}
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		c := store.CoSupervisor{
			ID:        r.newID(),
			StudentID: studentID,
			Role:      DefaultCoSupervisorRole,
		}
		if lecturer != nil {
			id := lecturer.ID
			c.LecturerID = &id
		} else {
			c.ExternalName = ref.Name
			c.ExternalInstitution = ref.Institution
		}
		p.add(KindCoSupervisor, true, func(ctx context.Context, repo Repository) error {
			return repo.CreateCoSupervisor(ctx, c)
		})
		return nil
	case err != nil:
		return fmt.Errorf("find co-supervisor: %w", err)
	}

	if lecturer != nil {
		// Internal links carry no descriptive fields of their own.
		return nil
	}

	updated := existing
	updated.ExternalName = ref.Name
	setIfGiven(&updated.ExternalInstitution, ref.Institution)
	if updated != existing {
		p.add(KindCoSupervisor, false, func(ctx context.Context, repo Repository) error {
			return repo.UpdateCoSupervisor(ctx, updated)
		})
	}
	return nil
}

func setIfGiven(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func studentChanged(a, b store.Student) bool {
	return a.Name != b.Name ||
		a.Email != b.Email ||
		a.ProgramID != b.ProgramID ||
		a.SupervisorID != b.SupervisorID ||
		a.ResearchTitle != b.ResearchTitle ||
		!equalIntPtr(a.IntakeYear, b.IntakeYear)
}

func evaluationChanged(a, b store.Evaluation) bool {
	return a.EvaluationType != b.EvaluationType ||
		!equalUUIDPtr(a.Examiner1ID, b.Examiner1ID) ||
		!equalUUIDPtr(a.Examiner2ID, b.Examiner2ID) ||
		!equalUUIDPtr(a.ChairpersonID, b.ChairpersonID)
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalUUIDPtr(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
