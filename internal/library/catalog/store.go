package catalog

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

const bookColumns = `book_id, title, author, genre, year_published, available_copies`

func scanBook(row *sql.Row) (*Book, error) {
	var b Book
	if err := row.Scan(&b.BookID, &b.Title, &b.Author, &b.Genre, &b.YearPublished, &b.AvailableCopies); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.ErrNotFound("book not found")
		}
		return nil, err
	}
	return &b, nil
}

func (s *Store) Get(ctx context.Context, bookID int64) (*Book, error) {
	return GetTx(ctx, s.conn, bookID)
}

// GetTx reads a book on any executor, so callers holding a transaction can
// reuse it.
func GetTx(ctx context.Context, tx db.DBTX, bookID int64) (*Book, error) {
	const q = `SELECT ` + bookColumns + ` FROM books WHERE book_id = ?`
	return scanBook(tx.QueryRowContext(ctx, q, bookID))
}

type bookRow struct {
	Book
	ReservationCount int
}

func (s *Store) List(ctx context.Context) ([]bookRow, error) {
	const q = `
	SELECT b.book_id, b.title, b.author, b.genre, b.year_published, b.available_copies,
	       (SELECT COUNT(*) FROM reservations r WHERE r.book_id = b.book_id) AS reservation_count
	FROM books b
	ORDER BY b.title`

	rows, err := s.conn.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []bookRow
	for rows.Next() {
		var r bookRow
		if err := rows.Scan(&r.BookID, &r.Title, &r.Author, &r.Genre, &r.YearPublished, &r.AvailableCopies, &r.ReservationCount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ReservationCount(ctx context.Context, bookID int64) (int, error) {
	const q = `SELECT COUNT(*) FROM reservations WHERE book_id = ?`
	var n int
	if err := s.conn.QueryRowContext(ctx, q, bookID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) Insert(ctx context.Context, b *Book) error {
	const q = `
	INSERT INTO books (title, author, genre, year_published, available_copies)
	VALUES (?, ?, ?, ?, ?)`
	res, err := s.conn.ExecContext(ctx, q, b.Title, b.Author, b.Genre, b.YearPublished, b.AvailableCopies)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	b.BookID = id
	return nil
}

func (s *Store) Update(ctx context.Context, b *Book) error {
	const q = `
	UPDATE books
	SET title = ?, author = ?, genre = ?, year_published = ?, available_copies = ?
	WHERE book_id = ?`
	res, err := s.conn.ExecContext(ctx, q, b.Title, b.Author, b.Genre, b.YearPublished, b.AvailableCopies, b.BookID)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return apperr.ErrNotFound("book not found")
	}
	return nil
}

// ExecDelete removes a book unless it still has active borrow records.
func (s *Store) ExecDelete(ctx context.Context, bookID int64) error {
	return db.RunInTx(ctx, s.conn, nil, func(ctx context.Context, tx db.DBTX) error {
		const countQ = `SELECT COUNT(*) FROM borrows WHERE book_id = ? AND active = 1`
		var active int
		if err := tx.QueryRowContext(ctx, countQ, bookID).Scan(&active); err != nil {
			return err
		}
		if active > 0 {
			return apperr.ErrPolicy("book has pending or issued borrows, process returns first")
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM books WHERE book_id = ?`, bookID)
		if err != nil {
			return err
		}
		aff, _ := res.RowsAffected()
		if aff == 0 {
			return apperr.ErrNotFound("book not found")
		}
		return nil
	})
}

// AdjustCopiesTx is the single sanctioned mutation of available_copies.
// The guard rides in the WHERE clause so a concurrent check-then-write
// cannot drive the counter negative.
func AdjustCopiesTx(ctx context.Context, tx db.DBTX, bookID int64, delta int) error {
	const q = `
	UPDATE books
	SET available_copies = available_copies + ?
	WHERE book_id = ? AND available_copies + ? >= 0`
	res, err := tx.ExecContext(ctx, q, delta, bookID, delta)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff == 1 {
		return nil
	}
	if _, err := GetTx(ctx, tx, bookID); err != nil {
		return err
	}
	return apperr.ErrExhausted("no copies available")
}
