package reservations

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"LMS-backend/internal/library/apperr"
	"LMS-backend/internal/platform/db"
)

type Clock interface{ Now() time.Time }
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type Service struct {
	conn  *sql.DB
	store *Store
	clock Clock
}

func NewService(conn *sql.DB) *Service {
	return &Service{conn: conn, store: NewStore(conn), clock: realClock{}}
}

type ReservationResponse struct {
	ReservationID   int64     `json:"reservation_id"`
	StudentID       int64     `json:"student_id"`
	BookID          int64     `json:"book_id"`
	ReservationDate time.Time `json:"reservation_date"`
	BookTitle       string    `json:"book_title,omitempty"`
	Author          string    `json:"author,omitempty"`
	// Queue size for the book after this operation.
	ReservationCount int `json:"reservation_count,omitempty"`
}

func (s *Service) Reserve(ctx context.Context, studentID, bookID int64) (ReservationResponse, error) {
	if studentID <= 0 {
		return ReservationResponse{}, apperr.ErrInvalid("student_id must be > 0")
	}
	if bookID <= 0 {
		return ReservationResponse{}, apperr.ErrInvalid("book_id must be > 0")
	}
	m := &Reservation{
		StudentID:       studentID,
		BookID:          bookID,
		ReservationDate: s.clock.Now(),
	}
	if err := s.store.ExecReserve(ctx, m); err != nil {
		if errors.Is(err, db.ErrTxConflict) {
			return ReservationResponse{}, apperr.ErrConflict("storage busy, please retry")
		}
		return ReservationResponse{}, err
	}
	n, err := s.store.CountFor(ctx, bookID)
	if err != nil {
		return ReservationResponse{}, err
	}
	return ReservationResponse{
		ReservationID:    m.ReservationID,
		StudentID:        m.StudentID,
		BookID:           m.BookID,
		ReservationDate:  m.ReservationDate,
		ReservationCount: n,
	}, nil
}

func (s *Service) CountFor(ctx context.Context, bookID int64) (int, error) {
	return s.store.CountFor(ctx, bookID)
}

func (s *Service) ListForStudent(ctx context.Context, studentID int64) ([]ReservationResponse, error) {
	rows, err := s.store.ListForStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return toResponses(rows), nil
}

func (s *Service) ListForBook(ctx context.Context, bookID int64) ([]ReservationResponse, error) {
	rows, err := s.store.ListForBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return toResponses(rows), nil
}

func toResponses(rows []reservationRow) []ReservationResponse {
	out := make([]ReservationResponse, 0, len(rows))
	for i := range rows {
		out = append(out, ReservationResponse{
			ReservationID:   rows[i].ReservationID,
			StudentID:       rows[i].StudentID,
			BookID:          rows[i].BookID,
			ReservationDate: rows[i].ReservationDate,
			BookTitle:       rows[i].BookTitle,
			Author:          rows[i].Author,
		})
	}
	return out
}
