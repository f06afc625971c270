package store

import (
	"context"
	"fmt"
)

const userByStaffNumber = `
SELECT id, staff_number, email, name, password_hash, role, lecturer_id, created_at, updated_at
FROM users
WHERE staff_number = $1`

func (q *Queries) UserByStaffNumber(ctx context.Context, staffNumber string) (User, error) {
	var u User
	err := q.db.QueryRow(ctx, userByStaffNumber, staffNumber).Scan(
		&u.ID, &u.StaffNumber, &u.Email, &u.Name, &u.PasswordHash, &u.Role,
		&u.LecturerID, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return User{}, notFound(err)
	}
	return u, nil
}

const createUser = `
INSERT INTO users (id, staff_number, email, name, password_hash, role, lecturer_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// CreateUser inserts a user. There is no update: imports never touch
// an existing account.
func (q *Queries) CreateUser(ctx context.Context, u User) error {
	_, err := q.db.Exec(ctx, createUser,
		u.ID, u.StaffNumber, u.Email, u.Name, u.PasswordHash, u.Role, u.LecturerID,
	)
	if err != nil {
		return fmt.Errorf("insert user %s: %w", u.StaffNumber, err)
	}
	return nil
}
