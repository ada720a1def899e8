package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"LMS-backend/internal/library/students"
	"LMS-backend/internal/platform/db"
)

const (
	RoleStudent   = "student"
	RoleLibrarian = "librarian"
	RoleAdmin     = "admin"
)

var (
	ErrAlreadyExists   = errors.New("already exists")
	ErrNotFound        = errors.New("not found")
	ErrAuthFailed      = errors.New("authentication failed")
	ErrPendingApproval = errors.New("registration pending approval")
)

type Service struct {
	conn   *sql.DB
	store  *Store
	secret []byte
}

func NewService(conn *sql.DB, secret []byte) *Service {
	return &Service{conn: conn, store: NewStore(conn), secret: secret}
}

func (s *Service) Login(ctx context.Context, id, password string) (string, error) {
	acct, err := s.store.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if acct == nil || acct.IsDisabled {
		return "", ErrAuthFailed
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return "", ErrAuthFailed
	}

	// Student accounts stay locked until an admin approves the signup.
	if acct.Role == RoleStudent && acct.StudentID.Valid {
		status, err := s.store.studentStatus(ctx, acct.StudentID.Int64)
		if err != nil {
			return "", err
		}
		if status != string(students.RegApproved) {
			return "", ErrPendingApproval
		}
	}

	claims := jwt.MapClaims{
		"sub":  acct.ID,
		"role": acct.Role,
		"exp":  time.Now().Add(24 * time.Hour).Unix(),
	}
	if acct.StudentID.Valid {
		claims["sid"] = acct.StudentID.Int64
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// SignupStudent creates the student record and its login in one
// transaction; a failed account insert rolls the student row back too.
func (s *Service) SignupStudent(ctx context.Context, firstName, lastName, email, password string) (int64, error) {
	exists, err := s.store.GetByID(ctx, email)
	if err != nil {
		return 0, err
	}
	if exists != nil {
		return 0, ErrAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, err
	}

	m := &students.Student{
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Status:    students.RegPending,
	}
	err = db.RunInTx(ctx, s.conn, nil, func(ctx context.Context, tx db.DBTX) error {
		if err := students.InsertTx(ctx, tx, m); err != nil {
			return err
		}
		const q = `
		INSERT INTO accounts (id, password_hash, role, student_id, is_disabled)
		VALUES (?, ?, ?, ?, 0)`
		_, err := tx.ExecContext(ctx, q, email, string(hash), RoleStudent, m.StudentID)
		if err != nil && db.IsDuplicate(err) {
			return ErrAlreadyExists
		}
		return err
	})
	if err != nil {
		return 0, err
	}
	return m.StudentID, nil
}

// RegisterStaff creates a librarian or admin account.
func (s *Service) RegisterStaff(ctx context.Context, id, password, role string) error {
	if role != RoleLibrarian && role != RoleAdmin {
		return errors.New("role must be librarian or admin")
	}
	exists, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if exists != nil {
		return ErrAlreadyExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.store.Create(ctx, &Account{
		ID:           id,
		PasswordHash: string(hash),
		Role:         role,
	})
}

func (s *Service) Delete(ctx context.Context, id string) error {
	n, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
