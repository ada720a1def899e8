package fines

import (
	"context"
	"database/sql"

	"LMS-backend/internal/library/apperr"
)

type Service struct {
	conn  *sql.DB
	store *Store
}

func NewService(conn *sql.DB) *Service {
	return &Service{conn: conn, store: NewStore(conn)}
}

// MarkPaid settles one fine. Paying an already settled fine is rejected
// and never subtracts from the aggregate again.
func (s *Service) MarkPaid(ctx context.Context, fineID int64) (FineResponse, error) {
	if fineID <= 0 {
		return FineResponse{}, apperr.ErrInvalid("fine_id must be > 0")
	}
	f, err := s.store.ExecMarkPaid(ctx, fineID)
	if err != nil {
		return FineResponse{}, err
	}
	return toResponse(&fineRow{Fine: *f}), nil
}

func (s *Service) PayAll(ctx context.Context, studentID int64) (PayAllResponse, error) {
	if studentID <= 0 {
		return PayAllResponse{}, apperr.ErrInvalid("student_id must be > 0")
	}
	total, err := s.store.ExecPayAll(ctx, studentID)
	if err != nil {
		return PayAllResponse{}, err
	}
	return PayAllResponse{StudentID: studentID, AmountPaid: total}, nil
}

func (s *Service) UnpaidFor(ctx context.Context, studentID int64) (StudentFinesResponse, error) {
	total, err := s.store.UnpaidTotal(ctx, studentID)
	if err != nil {
		return StudentFinesResponse{}, err
	}
	rows, err := s.store.UnpaidFor(ctx, studentID)
	if err != nil {
		return StudentFinesResponse{}, err
	}
	out := StudentFinesResponse{FineDue: total, Fines: make([]FineResponse, 0, len(rows))}
	for i := range rows {
		out.Fines = append(out.Fines, toResponse(&rows[i]))
	}
	return out, nil
}

func (s *Service) AllUnpaid(ctx context.Context) ([]FineResponse, error) {
	rows, err := s.store.AllUnpaid(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]FineResponse, 0, len(rows))
	for i := range rows {
		out = append(out, toResponse(&rows[i]))
	}
	return out, nil
}
