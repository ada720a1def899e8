package auth

import (
	"context"
	"database/sql"
)

type Account struct {
	ID           string
	PasswordHash string
	Role         string
	StudentID    sql.NullInt64
	IsDisabled   bool
}

type Store struct {
	conn *sql.DB
}

func NewStore(conn *sql.DB) *Store { return &Store{conn: conn} }

func (s *Store) GetByID(ctx context.Context, id string) (*Account, error) {
	const q = `SELECT id, password_hash, role, student_id, is_disabled FROM accounts WHERE id = ?`
	var a Account
	err := s.conn.QueryRowContext(ctx, q, id).Scan(&a.ID, &a.PasswordHash, &a.Role, &a.StudentID, &a.IsDisabled)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) Create(ctx context.Context, a *Account) error {
	const q = `
	INSERT INTO accounts (id, password_hash, role, student_id, is_disabled)
	VALUES (?, ?, ?, ?, ?)`
	_, err := s.conn.ExecContext(ctx, q, a.ID, a.PasswordHash, a.Role, a.StudentID, a.IsDisabled)
	return err
}

func (s *Store) Delete(ctx context.Context, id string) (int64, error) {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// studentStatus reads the registration state of the linked student.
func (s *Store) studentStatus(ctx context.Context, studentID int64) (string, error) {
	const q = `SELECT status FROM students WHERE student_id = ?`
	var status string
	if err := s.conn.QueryRowContext(ctx, q, studentID).Scan(&status); err != nil {
		return "", err
	}
	return status, nil
}
