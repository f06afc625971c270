package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const coSupervisorColumns = `id, student_id, lecturer_id, external_name, external_institution, role, created_at, updated_at`

func scanCoSupervisor(row interface{ Scan(...any) error }) (CoSupervisor, error) {
	var c CoSupervisor
	err := row.Scan(
		&c.ID, &c.StudentID, &c.LecturerID, &c.ExternalName, &c.ExternalInstitution,
		&c.Role, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return CoSupervisor{}, notFound(err)
	}
	return c, nil
}

const coSupervisorByLecturer = `
SELECT ` + coSupervisorColumns + `
FROM co_supervisors
WHERE student_id = $1 AND lecturer_id = $2`

// CoSupervisorByLecturer finds an internal co-supervisor link.
func (q *Queries) CoSupervisorByLecturer(ctx context.Context, studentID, lecturerID uuid.UUID) (CoSupervisor, error) {
	return scanCoSupervisor(q.db.QueryRow(ctx, coSupervisorByLecturer, studentID, lecturerID))
}

const coSupervisorByExternalName = `
SELECT ` + coSupervisorColumns + `
FROM co_supervisors
WHERE student_id = $1 AND lecturer_id IS NULL AND lower(external_name) = lower($2)`

// CoSupervisorByExternalName finds an external co-supervisor, ignoring case.
func (q *Queries) CoSupervisorByExternalName(ctx context.Context, studentID uuid.UUID, name string) (CoSupervisor, error) {
	return scanCoSupervisor(q.db.QueryRow(ctx, coSupervisorByExternalName, studentID, name))
}

const createCoSupervisor = `
INSERT INTO co_supervisors (id, student_id, lecturer_id, external_name, external_institution, role)
VALUES ($1, $2, $3, $4, $5, $6)`

func (q *Queries) CreateCoSupervisor(ctx context.Context, c CoSupervisor) error {
	_, err := q.db.Exec(ctx, createCoSupervisor,
		c.ID, c.StudentID, c.LecturerID, c.ExternalName, c.ExternalInstitution, c.Role,
	)
	if err != nil {
		return fmt.Errorf("insert co-supervisor: %w", err)
	}
	return nil
}

const updateCoSupervisor = `
UPDATE co_supervisors
SET external_name = $2, external_institution = $3, role = $4, updated_at = now()
WHERE id = $1`

func (q *Queries) UpdateCoSupervisor(ctx context.Context, c CoSupervisor) error {
	_, err := q.db.Exec(ctx, updateCoSupervisor, c.ID, c.ExternalName, c.ExternalInstitution, c.Role)
	if err != nil {
		return fmt.Errorf("update co-supervisor: %w", err)
	}
	return nil
}
