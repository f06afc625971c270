package store

import (
	"context"
	"fmt"
)

const programByCode = `
SELECT id, code, name, faculty, created_at, updated_at
FROM programs
WHERE code = $1`

// ProgramByCode finds a program by its natural key.
func (q *Queries) ProgramByCode(ctx context.Context, code string) (Program, error) {
	var p Program
	err := q.db.QueryRow(ctx, programByCode, code).Scan(
		&p.ID, &p.Code, &p.Name, &p.Faculty, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return Program{}, notFound(err)
	}
	return p, nil
}

const createProgram = `
INSERT INTO programs (id, code, name, faculty)
VALUES ($1, $2, $3, $4)`

func (q *Queries) CreateProgram(ctx context.Context, p Program) error {
	if _, err := q.db.Exec(ctx, createProgram, p.ID, p.Code, p.Name, p.Faculty); err != nil {
		return fmt.Errorf("insert program %s: %w", p.Code, err)
	}
	return nil
}

const updateProgram = `
UPDATE programs
SET name = $2, faculty = $3, updated_at = now()
WHERE id = $1`

func (q *Queries) UpdateProgram(ctx context.Context, p Program) error {
	if _, err := q.db.Exec(ctx, updateProgram, p.ID, p.Name, p.Faculty); err != nil {
		return fmt.Errorf("update program %s: %w", p.Code, err)
	}
	return nil
}
