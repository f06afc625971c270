package store

import (
	"context"
	"fmt"
)

const studentByMatricNumber = `
SELECT id, matric_number, name, email, program_id, supervisor_id, research_title,
       intake_year, created_at, updated_at
FROM students
WHERE matric_number = $1`

func (q *Queries) StudentByMatricNumber(ctx context.Context, matric string) (Student, error) {
	var s Student
	err := q.db.QueryRow(ctx, studentByMatricNumber, matric).Scan(
		&s.ID, &s.MatricNumber, &s.Name, &s.Email, &s.ProgramID, &s.SupervisorID,
		&s.ResearchTitle, &s.IntakeYear, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return Student{}, notFound(err)
	}
	return s, nil
}

const createStudent = `
INSERT INTO students (id, matric_number, name, email, program_id, supervisor_id, research_title, intake_year)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

func (q *Queries) CreateStudent(ctx context.Context, s Student) error {
	_, err := q.db.Exec(ctx, createStudent,
		s.ID, s.MatricNumber, s.Name, s.Email, s.ProgramID, s.SupervisorID, s.ResearchTitle, s.IntakeYear,
	)
	if err != nil {
		return fmt.Errorf("insert student %s: %w", s.MatricNumber, err)
	}
	return nil
}

const updateStudent = `
UPDATE students
SET name = $2, email = $3, program_id = $4, supervisor_id = $5,
    research_title = $6, intake_year = $7, updated_at = now()
WHERE id = $1`

func (q *Queries) UpdateStudent(ctx context.Context, s Student) error {
	_, err := q.db.Exec(ctx, updateStudent,
		s.ID, s.Name, s.Email, s.ProgramID, s.SupervisorID, s.ResearchTitle, s.IntakeYear,
	)
	if err != nil {
		return fmt.Errorf("update student %s: %w", s.MatricNumber, err)
	}
	return nil
}
