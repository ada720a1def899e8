package catalog

import (
	"context"
	"database/sql"
	"strings"

	"LMS-backend/internal/library/apperr"
	"LMS-backend/internal/platform/db"
)

type Service struct {
	conn  *sql.DB
	store *Store
}

func NewService(conn *sql.DB) *Service {
	return &Service{conn: conn, store: NewStore(conn)}
}

func (s *Service) List(ctx context.Context) ([]BookResponse, error) {
	rows, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]BookResponse, 0, len(rows))
	for i := range rows {
		out = append(out, toResponse(&rows[i].Book, rows[i].ReservationCount))
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, bookID int64) (BookResponse, error) {
	b, err := s.store.Get(ctx, bookID)
	if err != nil {
		return BookResponse{}, err
	}
	n, err := s.store.ReservationCount(ctx, bookID)
	if err != nil {
		return BookResponse{}, err
	}
	return toResponse(b, n), nil
}

func (s *Service) Create(ctx context.Context, in CreateBookRequest) (BookResponse, error) {
	if strings.TrimSpace(in.Title) == "" {
		return BookResponse{}, apperr.ErrInvalid("title is required")
	}
	if in.Copies < 0 {
		return BookResponse{}, apperr.ErrInvalid("copies must be >= 0")
	}
	b := &Book{
		Title:           in.Title,
		Author:          in.Author,
		Genre:           in.Genre,
		YearPublished:   in.YearPublished,
		AvailableCopies: in.Copies,
	}
	if err := s.store.Insert(ctx, b); err != nil {
		return BookResponse{}, err
	}
	return toResponse(b, 0), nil
}

func (s *Service) Update(ctx context.Context, bookID int64, in UpdateBookRequest) (BookResponse, error) {
	if in.Copies < 0 {
		return BookResponse{}, apperr.ErrInvalid("copies must be >= 0")
	}
	b := &Book{
		BookID:          bookID,
		Title:           in.Title,
		Author:          in.Author,
		Genre:           in.Genre,
		YearPublished:   in.YearPublished,
		AvailableCopies: in.Copies,
	}
	if err := s.store.Update(ctx, b); err != nil {
		return BookResponse{}, err
	}
	return s.Get(ctx, bookID)
}

func (s *Service) Delete(ctx context.Context, bookID int64) error {
	return s.store.ExecDelete(ctx, bookID)
}

// AdjustCopies runs the counter guard in its own transaction. In-process
// callers that already hold a transaction use AdjustCopiesTx directly.
func (s *Service) AdjustCopies(ctx context.Context, bookID int64, delta int) error {
	if delta == 0 {
		return apperr.ErrInvalid("delta must be non-zero")
	}
	return db.RunInTxRetry(ctx, s.conn, nil, func(ctx context.Context, tx db.DBTX) error {
		return AdjustCopiesTx(ctx, tx, bookID, delta)
	})
}
