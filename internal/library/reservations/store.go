package reservations

import (
	"context"
	"database/sql"

	"LMS-backend/internal/library/apperr"
	"LMS-backend/internal/library/catalog"
	"LMS-backend/internal/platform/db"
)

type Store struct {
	conn *sql.DB
}

func NewStore(conn *sql.DB) *Store { return &Store{conn: conn} }

// ExecReserve appends a reservation, provided the title is actually out
// of copies. The (student_id, book_id) unique key rejects duplicates even
// when two requests race.
func (s *Store) ExecReserve(ctx context.Context, m *Reservation) error {
	return db.RunInTxRetry(ctx, s.conn, nil, func(ctx context.Context, tx db.DBTX) error {
		b, err := catalog.GetTx(ctx, tx, m.BookID)
		if err != nil {
			return err
		}
		if b.AvailableCopies > 0 {
			return apperr.ErrInvalid("book is available, borrow it instead of reserving")
		}

		const q = `
		INSERT INTO reservations (student_id, book_id, reservation_date)
		VALUES (?, ?, ?)`
		res, err := tx.ExecContext(ctx, q, m.StudentID, m.BookID, m.ReservationDate)
		if err != nil {
			if db.IsDuplicate(err) {
				return apperr.ErrPolicy("you have already reserved this book")
			}
			return err
		}
		id, _ := res.LastInsertId()
		m.ReservationID = id
		return nil
	})
}

func (s *Store) CountFor(ctx context.Context, bookID int64) (int, error) {
	const q = `SELECT COUNT(*) FROM reservations WHERE book_id = ?`
	var n int
	if err := s.conn.QueryRowContext(ctx, q, bookID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ListForBook returns the queue for one title in request order.
func (s *Store) ListForBook(ctx context.Context, bookID int64) ([]reservationRow, error) {
	const q = `
	SELECT r.reservation_id, r.student_id, r.book_id, r.reservation_date, bk.title, bk.author
	FROM reservations r
	JOIN books bk ON bk.book_id = r.book_id
	WHERE r.book_id = ?
	ORDER BY r.reservation_date ASC, r.reservation_id ASC`
	return s.queryRows(ctx, q, bookID)
}

func (s *Store) ListForStudent(ctx context.Context, studentID int64) ([]reservationRow, error) {
	const q = `
	SELECT r.reservation_id, r.student_id, r.book_id, r.reservation_date, bk.title, bk.author
	FROM reservations r
	JOIN books bk ON bk.book_id = r.book_id
	WHERE r.student_id = ?
	ORDER BY r.reservation_date ASC, r.reservation_id ASC`
	return s.queryRows(ctx, q, studentID)
}

func (s *Store) queryRows(ctx context.Context, q string, args ...any) ([]reservationRow, error) {
	rows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reservationRow
	for rows.Next() {
		var r reservationRow
		if err := rows.Scan(&r.ReservationID, &r.StudentID, &r.BookID, &r.ReservationDate, &r.BookTitle, &r.Author); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
