package students

import (
	"context"
	"database/sql"

	"LMS-backend/internal/library/apperr"
	"LMS-backend/internal/platform/db"
)

type Store struct {
	conn *sql.DB
}

func NewStore(conn *sql.DB) *Store { return &Store{conn: conn} }

const studentColumns = `student_id, first_name, last_name, email, fine_due, status`

func scanStudent(row *sql.Row) (*Student, error) {
	var s Student
	if err := row.Scan(&s.StudentID, &s.FirstName, &s.LastName, &s.Email, &s.FineDue, &s.Status); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.ErrNotFound("student not found")
		}
		return nil, err
	}
	return &s, nil
}

func (s *Store) Get(ctx context.Context, studentID int64) (*Student, error) {
	const q = `SELECT ` + studentColumns + ` FROM students WHERE student_id = ?`
	return scanStudent(s.conn.QueryRowContext(ctx, q, studentID))
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*Student, error) {
	const q = `SELECT ` + studentColumns + ` FROM students WHERE email = ?`
	return scanStudent(s.conn.QueryRowContext(ctx, q, email))
}

func (s *Store) Insert(ctx context.Context, m *Student) error {
	return InsertTx(ctx, s.conn, m)
}

// InsertTx creates a student on the caller's executor so signup can put
// the student row and its account in one transaction.
func InsertTx(ctx context.Context, tx db.DBTX, m *Student) error {
	const q = `
	INSERT INTO students (first_name, last_name, email, fine_due, status)
	VALUES (?, ?, ?, 0, ?)`
	res, err := tx.ExecContext(ctx, q, m.FirstName, m.LastName, m.Email, m.Status)
	if err != nil {
		if db.IsDuplicate(err) {
			return apperr.ErrPolicy("a student with this email already exists")
		}
		return err
	}
	id, _ := res.LastInsertId()
	m.StudentID = id
	return nil
}

func (s *Store) List(ctx context.Context, status RegStatus) ([]Student, error) {
	q := `SELECT ` + studentColumns + ` FROM students`
	var args []any
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY student_id`

	rows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Student
	for rows.Next() {
		var m Student
		if err := rows.Scan(&m.StudentID, &m.FirstName, &m.LastName, &m.Email, &m.FineDue, &m.Status); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateStatus moves a registration out of PENDING. The WHERE clause
// keeps the decision single-shot.
func (s *Store) UpdateStatus(ctx context.Context, studentID int64, to RegStatus) error {
	const q = `UPDATE students SET status = ? WHERE student_id = ? AND status = ?`
	res, err := s.conn.ExecContext(ctx, q, to, studentID, RegPending)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		if _, err := s.Get(ctx, studentID); err != nil {
			return err
		}
		return apperr.ErrInvalidState("registration already processed")
	}
	return nil
}
