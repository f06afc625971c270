package core

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/studentimport/internal/progress"
	"github.com/JonMunkholm/studentimport/internal/store"
	"github.com/google/uuid"
)

var testNow = time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

type evalKey struct {
	studentID    uuid.UUID
	semester     int
	academicYear string
}

type repoState struct {
	programs      map[string]store.Program
	lecturers     map[string]store.Lecturer
	users         map[string]store.User
	students      map[string]store.Student
	evaluations   map[evalKey]store.Evaluation
	coSupervisors map[uuid.UUID]store.CoSupervisor
}

func (s repoState) clone() repoState {
	return repoState{
		programs:      maps.Clone(s.programs),
		lecturers:     maps.Clone(s.lecturers),
		users:         maps.Clone(s.users),
		students:      maps.Clone(s.students),
		evaluations:   maps.Clone(s.evaluations),
		coSupervisors: maps.Clone(s.coSupervisors),
	}
}

// memRepo is an in-memory Repository with the same unique keys as the schema.
type memRepo struct {
	mu     sync.Mutex
	state  repoState
	writes int

	// failWrite makes the named write method return an error.
	failWrite string
}

func newMemRepo() *memRepo {
	return &memRepo{state: repoState{
		programs:      map[string]store.Program{},
		lecturers:     map[string]store.Lecturer{},
		users:         map[string]store.User{},
		students:      map[string]store.Student{},
		evaluations:   map[evalKey]store.Evaluation{},
		coSupervisors: map[uuid.UUID]store.CoSupervisor{},
	}}
}

func (m *memRepo) write(op string) error {
	if m.failWrite == op {
		return fmt.Errorf("%s: connection reset by peer", op)
	}
	m.writes++
	return nil
}

// counts returns the number of rows per table.
func (m *memRepo) counts() map[Kind]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[Kind]int{
		KindProgram:      len(m.state.programs),
		KindLecturer:     len(m.state.lecturers),
		KindUser:         len(m.state.users),
		KindStudent:      len(m.state.students),
		KindEvaluation:   len(m.state.evaluations),
		KindCoSupervisor: len(m.state.coSupervisors),
	}
}

func (m *memRepo) ProgramByCode(_ context.Context, code string) (store.Program, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.state.programs[code]
	if !ok {
		return store.Program{}, store.ErrNotFound
	}
	return p, nil
}

func (m *memRepo) CreateProgram(_ context.Context, p store.Program) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.programs[p.Code]; ok {
		return fmt.Errorf("duplicate program %s", p.Code)
	}
	if err := m.write("CreateProgram"); err != nil {
		return err
	}
	m.state.programs[p.Code] = p
	return nil
}

func (m *memRepo) UpdateProgram(_ context.Context, p store.Program) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("UpdateProgram"); err != nil {
		return err
	}
	m.state.programs[p.Code] = p
	return nil
}

func (m *memRepo) LecturerByStaffNumber(_ context.Context, staffNumber string) (store.Lecturer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.state.lecturers[staffNumber]
	if !ok {
		return store.Lecturer{}, store.ErrNotFound
	}
	return l, nil
}

func (m *memRepo) CreateLecturer(_ context.Context, l store.Lecturer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.lecturers[l.StaffNumber]; ok {
		return fmt.Errorf("duplicate lecturer %s", l.StaffNumber)
	}
	if err := m.write("CreateLecturer"); err != nil {
		return err
	}
	m.state.lecturers[l.StaffNumber] = l
	return nil
}

func (m *memRepo) UpdateLecturer(_ context.Context, l store.Lecturer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("UpdateLecturer"); err != nil {
		return err
	}
	m.state.lecturers[l.StaffNumber] = l
	return nil
}

func (m *memRepo) UserByStaffNumber(_ context.Context, staffNumber string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.state.users[staffNumber]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func (m *memRepo) CreateUser(_ context.Context, u store.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.users[u.StaffNumber]; ok {
		return fmt.Errorf("duplicate user %s", u.StaffNumber)
	}
	if err := m.write("CreateUser"); err != nil {
		return err
	}
	m.state.users[u.StaffNumber] = u
	return nil
}

func (m *memRepo) StudentByMatricNumber(_ context.Context, matric string) (store.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.state.students[matric]
	if !ok {
		return store.Student{}, store.ErrNotFound
	}
	return s, nil
}

func (m *memRepo) CreateStudent(_ context.Context, s store.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.students[s.MatricNumber]; ok {
		return fmt.Errorf("duplicate student %s", s.MatricNumber)
	}
	if err := m.write("CreateStudent"); err != nil {
		return err
	}
	m.state.students[s.MatricNumber] = s
	return nil
}

func (m *memRepo) UpdateStudent(_ context.Context, s store.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("UpdateStudent"); err != nil {
		return err
	}
	m.state.students[s.MatricNumber] = s
	return nil
}

func (m *memRepo) EvaluationByKey(_ context.Context, studentID uuid.UUID, semester int, academicYear string) (store.Evaluation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.state.evaluations[evalKey{studentID, semester, academicYear}]
	if !ok {
		return store.Evaluation{}, store.ErrNotFound
	}
	return e, nil
}

func (m *memRepo) CreateEvaluation(_ context.Context, e store.Evaluation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := evalKey{e.StudentID, e.Semester, e.AcademicYear}
	if _, ok := m.state.evaluations[key]; ok {
		return errors.New("duplicate evaluation")
	}
	if err := m.write("CreateEvaluation"); err != nil {
		return err
	}
	m.state.evaluations[key] = e
	return nil
}

func (m *memRepo) UpdateEvaluation(_ context.Context, e store.Evaluation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("UpdateEvaluation"); err != nil {
		return err
	}
	m.state.evaluations[evalKey{e.StudentID, e.Semester, e.AcademicYear}] = e
	return nil
}

func (m *memRepo) CoSupervisorByLecturer(_ context.Context, studentID, lecturerID uuid.UUID) (store.CoSupervisor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.state.coSupervisors {
		if c.StudentID == studentID && c.LecturerID != nil && *c.LecturerID == lecturerID {
			return c, nil
		}
	}
	return store.CoSupervisor{}, store.ErrNotFound
}

func (m *memRepo) CoSupervisorByExternalName(_ context.Context, studentID uuid.UUID, name string) (store.CoSupervisor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.state.coSupervisors {
		if c.StudentID == studentID && c.LecturerID == nil && strings.EqualFold(c.ExternalName, name) {
			return c, nil
		}
	}
	return store.CoSupervisor{}, store.ErrNotFound
}

func (m *memRepo) CreateCoSupervisor(_ context.Context, c store.CoSupervisor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("CreateCoSupervisor"); err != nil {
		return err
	}
	m.state.coSupervisors[c.ID] = c
	return nil
}

func (m *memRepo) UpdateCoSupervisor(_ context.Context, c store.CoSupervisor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("UpdateCoSupervisor"); err != nil {
		return err
	}
	m.state.coSupervisors[c.ID] = c
	return nil
}

// memTx runs fn against repo and restores the previous state when fn fails.
type memTx struct {
	repo    *memRepo
	commits int
}

func (t *memTx) InTx(ctx context.Context, fn func(Repository) error) error {
	t.repo.mu.Lock()
	saved := t.repo.state.clone()
	t.repo.mu.Unlock()

	if err := fn(t.repo); err != nil {
		t.repo.mu.Lock()
		t.repo.state = saved
		t.repo.mu.Unlock()
		return err
	}
	t.commits++
	return nil
}

// memRuns records every saved run state.
type memRuns struct {
	mu    sync.Mutex
	runs  map[string]*ImportRun
	saves []Status
}

func newMemRuns() *memRuns {
	return &memRuns{runs: map[string]*ImportRun{}}
}

func (m *memRuns) SaveRun(_ context.Context, run *ImportRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run.Clone()
	m.saves = append(m.saves, run.Status)
	return nil
}

func (m *memRuns) GetRun(_ context.Context, id string) (*ImportRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run.Clone(), nil
}

func (m *memRuns) ListRuns(_ context.Context, ownerID string, limit int) ([]*ImportRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ImportRun
	for _, run := range m.runs {
		if run.OwnerID == ownerID && len(out) < limit {
			out = append(out, run.Clone())
		}
	}
	return out, nil
}

func (m *memRuns) statuses() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Status(nil), m.saves...)
}

// plainHasher avoids bcrypt cost in tests.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func testResolver(opts ...ResolverOption) *Resolver {
	return NewResolver(append([]ResolverOption{WithPasswordHasher(plainHasher{})}, opts...)...)
}

type importFixture struct {
	repo     *memRepo
	tx       *memTx
	runs     *memRuns
	progress *progress.MemoryStore
	importer *Importer
}

func newImportFixture(t *testing.T, opts ...ResolverOption) *importFixture {
	t.Helper()
	repo := newMemRepo()
	f := &importFixture{
		repo:     repo,
		tx:       &memTx{repo: repo},
		runs:     newMemRuns(),
		progress: progress.NewMemoryStore(progress.DefaultTTL),
	}
	t.Cleanup(func() { _ = f.progress.Close() })
	f.importer = NewImporter(ImporterDeps{
		Tx:       f.tx,
		Runs:     f.runs,
		Progress: f.progress,
		Resolver: testResolver(opts...),
	})
	return f
}

func (f *importFixture) run(t *testing.T, path string) (*ImportRun, error) {
	t.Helper()
	run := NewImportRun(Job{FilePath: path, FileName: filepath.Base(path), Extension: "csv", OwnerID: "owner-1"}, testNow)
	run.Attempts = 1
	err := f.importer.Run(context.Background(), run)
	return run, err
}

// Column layout used by the CSV fixtures.
const testHeader = "matric_number,student_name,program_code,program_name,supervisor_staff_number,supervisor_name,supervisor_email,semester,academic_year,evaluation_type,examiner1_staff_number,co_supervisor_name,co_supervisor_institution"

// writeCSV writes a title row, the header and rows to a temp file.
func writeCSV(t *testing.T, rows ...string) string {
	t.Helper()
	content := "Postgraduate students,,,\n" + testHeader + "\n" + strings.Join(rows, "\n") + "\n"
	path := filepath.Join(t.TempDir(), "students.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}
