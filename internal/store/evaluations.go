package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const evaluationByKey = `
SELECT id, student_id, semester, academic_year, evaluation_type, nomination_status,
       examiner1_id, examiner2_id, chairperson_id, created_at, updated_at
FROM evaluations
WHERE student_id = $1 AND semester = $2 AND academic_year = $3`

// EvaluationByKey finds the evaluation for one student in one semester.
func (q *Queries) EvaluationByKey(ctx context.Context, studentID uuid.UUID, semester int, academicYear string) (Evaluation, error) {
	var e Evaluation
	err := q.db.QueryRow(ctx, evaluationByKey, studentID, semester, academicYear).Scan(
		&e.ID, &e.StudentID, &e.Semester, &e.AcademicYear, &e.EvaluationType, &e.NominationStatus,
		&e.Examiner1ID, &e.Examiner2ID, &e.ChairpersonID, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return Evaluation{}, notFound(err)
	}
	return e, nil
}

const createEvaluation = `
INSERT INTO evaluations (id, student_id, semester, academic_year, evaluation_type,
                         nomination_status, examiner1_id, examiner2_id, chairperson_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func (q *Queries) CreateEvaluation(ctx context.Context, e Evaluation) error {
	_, err := q.db.Exec(ctx, createEvaluation,
		e.ID, e.StudentID, e.Semester, e.AcademicYear, e.EvaluationType,
		e.NominationStatus, e.Examiner1ID, e.Examiner2ID, e.ChairpersonID,
	)
	if err != nil {
		return fmt.Errorf("insert evaluation: %w", err)
	}
	return nil
}

const updateEvaluation = `
UPDATE evaluations
SET evaluation_type = $2, examiner1_id = $3, examiner2_id = $4, chairperson_id = $5,
    updated_at = now()
WHERE id = $1`

// UpdateEvaluation rewrites the assignment fields. Nomination status is
// owned by the nomination workflow and is left alone.
func (q *Queries) UpdateEvaluation(ctx context.Context, e Evaluation) error {
	_, err := q.db.Exec(ctx, updateEvaluation,
		e.ID, e.EvaluationType, e.Examiner1ID, e.Examiner2ID, e.ChairpersonID,
	)
	if err != nil {
		return fmt.Errorf("update evaluation: %w", err)
	}
	return nil
}
