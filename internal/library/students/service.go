package students

import (
	"context"
	"database/sql"
	"strings"

	"LMS-backend/internal/library/apperr"
)

type Service struct {
	conn  *sql.DB
	store *Store
}

func NewService(conn *sql.DB) *Service {
	return &Service{conn: conn, store: NewStore(conn)}
}

type StudentResponse struct {
	StudentID int64     `json:"student_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	FineDue   int64     `json:"fine_due"`
	Status    RegStatus `json:"status"`
}

func toResponse(m *Student) StudentResponse {
	return StudentResponse{
		StudentID: m.StudentID,
		FirstName: m.FirstName,
		LastName:  m.LastName,
		Email:     m.Email,
		FineDue:   m.FineDue,
		Status:    m.Status,
	}
}

// Register files a signup awaiting admin approval.
func (s *Service) Register(ctx context.Context, firstName, lastName, email string) (StudentResponse, error) {
	if strings.TrimSpace(firstName) == "" || strings.TrimSpace(email) == "" {
		return StudentResponse{}, apperr.ErrInvalid("first_name and email are required")
	}
	m := &Student{
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Status:    RegPending,
	}
	if err := s.store.Insert(ctx, m); err != nil {
		return StudentResponse{}, err
	}
	return toResponse(m), nil
}

func (s *Service) Get(ctx context.Context, studentID int64) (StudentResponse, error) {
	m, err := s.store.Get(ctx, studentID)
	if err != nil {
		return StudentResponse{}, err
	}
	return toResponse(m), nil
}

func (s *Service) List(ctx context.Context) ([]StudentResponse, error) {
	return s.list(ctx, "")
}

func (s *Service) ListPendingRegistrations(ctx context.Context) ([]StudentResponse, error) {
	return s.list(ctx, RegPending)
}

func (s *Service) list(ctx context.Context, status RegStatus) ([]StudentResponse, error) {
	rows, err := s.store.List(ctx, status)
	if err != nil {
		return nil, err
	}
	out := make([]StudentResponse, 0, len(rows))
	for i := range rows {
		out = append(out, toResponse(&rows[i]))
	}
	return out, nil
}

func (s *Service) ApproveRegistration(ctx context.Context, studentID int64) error {
	return s.store.UpdateStatus(ctx, studentID, RegApproved)
}

func (s *Service) RejectRegistration(ctx context.Context, studentID int64) error {
	return s.store.UpdateStatus(ctx, studentID, RegRejected)
}
