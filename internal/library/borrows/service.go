package borrows

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"strconv"
	"time"

	ulid "github.com/oklog/ulid/v2"

	"LMS-backend/internal/library/apperr"
	"LMS-backend/internal/library/fines"
	"LMS-backend/internal/platform/db"
)

type Clock interface{ Now() time.Time }
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface{ NewULID(t time.Time) string }
type ulidGen struct{}

func (ulidGen) NewULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

type Service struct {
	conn  *sql.DB
	store *Store
	clock Clock
	id    IDGen
}

func NewService(conn *sql.DB) *Service {
	return &Service{
		conn:  conn,
		store: NewStore(conn),
		clock: realClock{},
		id:    ulidGen{},
	}
}

// mapConflict turns an exhausted retry budget into the caller-facing
// conflict error; everything else passes through.
func mapConflict(err error) error {
	if errors.Is(err, db.ErrTxConflict) {
		return apperr.ErrConflict("storage busy, please retry")
	}
	return err
}

// RequestBorrow files a PENDING request. Copies are not consumed here;
// the librarian approval is where availability is decided.
func (s *Service) RequestBorrow(ctx context.Context, studentID, bookID int64) (BorrowResponse, error) {
	if studentID <= 0 {
		return BorrowResponse{}, apperr.ErrInvalid("student_id must be > 0")
	}
	if bookID <= 0 {
		return BorrowResponse{}, apperr.ErrInvalid("book_id must be > 0")
	}

	m := &Borrow{
		BorrowULID: s.id.NewULID(s.clock.Now()),
		StudentID:  studentID,
		BookID:     bookID,
	}
	if err := s.store.ExecRequestBorrow(ctx, m); err != nil {
		return BorrowResponse{}, mapConflict(err)
	}
	return toResponse(m), nil
}

// ApproveBorrow issues the book: PENDING -> ISSUED, due date 14 days out,
// one copy off the shelf.
func (s *Service) ApproveBorrow(ctx context.Context, borrowID int64, librarianID string) (BorrowResponse, error) {
	if borrowID <= 0 {
		return BorrowResponse{}, apperr.ErrInvalid("borrow_id must be > 0")
	}
	if librarianID == "" {
		return BorrowResponse{}, apperr.ErrInvalid("librarian_id is required")
	}
	b, err := s.store.ExecApprove(ctx, borrowID, librarianID, s.clock.Now())
	if err != nil {
		return BorrowResponse{}, mapConflict(err)
	}
	return toResponse(b), nil
}

func (s *Service) RejectBorrow(ctx context.Context, borrowID int64, librarianID string) (BorrowResponse, error) {
	if borrowID <= 0 {
		return BorrowResponse{}, apperr.ErrInvalid("borrow_id must be > 0")
	}
	b, err := s.store.ExecReject(ctx, borrowID, librarianID)
	if err != nil {
		return BorrowResponse{}, mapConflict(err)
	}
	return toResponse(b), nil
}

// ReturnBorrow closes the loan and, when late, records the fine.
func (s *Service) ReturnBorrow(ctx context.Context, borrowID int64) (ReturnResponse, error) {
	if borrowID <= 0 {
		return ReturnResponse{}, apperr.ErrInvalid("borrow_id must be > 0")
	}
	b, fine, err := s.store.ExecReturn(ctx, borrowID, s.clock.Now())
	if err != nil {
		return ReturnResponse{}, mapConflict(err)
	}
	resp := ReturnResponse{Borrow: toResponse(b), OnTime: fine == nil}
	if fine != nil {
		resp.Fine = &fines.FineResponse{
			FineID:    fine.FineID,
			BorrowID:  fine.BorrowID,
			StudentID: fine.StudentID,
			Amount:    fine.Amount,
			Reason:    fine.Reason,
			FineDate:  fine.FineDate,
			Paid:      fine.Paid,
		}
	}
	return resp, nil
}

// GetByKey resolves a record by numeric id or by its public ULID.
func (s *Service) GetByKey(ctx context.Context, key string) (BorrowResponse, error) {
	if key == "" {
		return BorrowResponse{}, apperr.ErrInvalid("id or ulid is required")
	}
	if id, err := strconv.ParseInt(key, 10, 64); err == nil && id > 0 {
		b, err := s.store.GetBorrow(ctx, id)
		if err != nil {
			return BorrowResponse{}, err
		}
		return toResponse(b), nil
	}
	b, err := s.store.GetBorrowByULID(ctx, key)
	if err != nil {
		return BorrowResponse{}, err
	}
	return toResponse(b), nil
}

func (s *Service) ListForStudent(ctx context.Context, studentID int64) ([]BorrowResponse, error) {
	rows, err := s.store.ListForStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return toJoinedResponses(rows), nil
}

func (s *Service) ListPending(ctx context.Context) ([]PendingRequestResponse, error) {
	rows, err := s.store.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]PendingRequestResponse, 0, len(rows))
	for i := range rows {
		out = append(out, PendingRequestResponse{
			BorrowResponse:  joinedResponse(&rows[i]),
			AvailableCopies: rows[i].AvailableCopies,
		})
	}
	return out, nil
}

func (s *Service) ListIssued(ctx context.Context) ([]BorrowResponse, error) {
	rows, err := s.store.ListIssued(ctx)
	if err != nil {
		return nil, err
	}
	return toJoinedResponses(rows), nil
}

func (s *Service) ListHistory(ctx context.Context) ([]BorrowResponse, error) {
	rows, err := s.store.ListHistory(ctx)
	if err != nil {
		return nil, err
	}
	return toJoinedResponses(rows), nil
}

func joinedResponse(r *borrowRow) BorrowResponse {
	resp := toResponse(&r.Borrow)
	resp.BookTitle = r.BookTitle
	resp.Author = r.Author
	resp.Genre = r.Genre
	resp.StudentName = r.FirstName + " " + r.LastName
	resp.Email = r.Email
	return resp
}

func toJoinedResponses(rows []borrowRow) []BorrowResponse {
	out := make([]BorrowResponse, 0, len(rows))
	for i := range rows {
		out = append(out, joinedResponse(&rows[i]))
	}
	return out
}
