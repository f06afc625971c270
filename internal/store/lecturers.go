package store

import (
	"context"
	"fmt"
)

const lecturerByStaffNumber = `
SELECT id, staff_number, name, email, department, created_at, updated_at
FROM lecturers
WHERE staff_number = $1`

// LecturerByStaffNumber finds a lecturer by staff number, the canonical key.
func (q *Queries) LecturerByStaffNumber(ctx context.Context, staffNumber string) (Lecturer, error) {
	var l Lecturer
	err := q.db.QueryRow(ctx, lecturerByStaffNumber, staffNumber).Scan(
		&l.ID, &l.StaffNumber, &l.Name, &l.Email, &l.Department, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return Lecturer{}, notFound(err)
	}
	return l, nil
}

const createLecturer = `
INSERT INTO lecturers (id, staff_number, name, email, department)
VALUES ($1, $2, $3, $4, $5)`

func (q *Queries) CreateLecturer(ctx context.Context, l Lecturer) error {
	if _, err := q.db.Exec(ctx, createLecturer, l.ID, l.StaffNumber, l.Name, l.Email, l.Department); err != nil {
		return fmt.Errorf("insert lecturer %s: %w", l.StaffNumber, err)
	}
	return nil
}

const updateLecturer = `
UPDATE lecturers
SET name = $2, email = $3, department = $4, updated_at = now()
WHERE id = $1`

func (q *Queries) UpdateLecturer(ctx context.Context, l Lecturer) error {
	if _, err := q.db.Exec(ctx, updateLecturer, l.ID, l.Name, l.Email, l.Department); err != nil {
		return fmt.Errorf("update lecturer %s: %w", l.StaffNumber, err)
	}
	return nil
}
