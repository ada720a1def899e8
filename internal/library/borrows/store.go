package borrows

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"LMS-backend/internal/library/apperr"
	"LMS-backend/internal/library/catalog"
	"LMS-backend/internal/library/fines"
	"LMS-backend/internal/platform/db"
)

type Store struct {
	conn *sql.DB
}

func NewStore(conn *sql.DB) *Store { return &Store{conn: conn} }

const borrowColumns = `borrow_id, borrow_ulid, student_id, book_id, status, issue_date, due_date, return_date, librarian_id`

func scanBorrow(row *sql.Row) (*Borrow, error) {
	var b Borrow
	if err := row.Scan(
		&b.BorrowID, &b.BorrowULID, &b.StudentID, &b.BookID, &b.Status,
		&b.IssueDate, &b.DueDate, &b.ReturnDate, &b.LibrarianID,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.ErrNotFound("borrow record not found")
		}
		return nil, err
	}
	return &b, nil
}

// GetBorrowTx reads one record on the caller's executor.
func GetBorrowTx(ctx context.Context, tx db.DBTX, borrowID int64) (*Borrow, error) {
	const q = `SELECT ` + borrowColumns + ` FROM borrows WHERE borrow_id = ?`
	return scanBorrow(tx.QueryRowContext(ctx, q, borrowID))
}

func (s *Store) GetBorrow(ctx context.Context, borrowID int64) (*Borrow, error) {
	return GetBorrowTx(ctx, s.conn, borrowID)
}

func (s *Store) GetBorrowByULID(ctx context.Context, ulid string) (*Borrow, error) {
	const q = `SELECT ` + borrowColumns + ` FROM borrows WHERE borrow_ulid = ?`
	return scanBorrow(s.conn.QueryRowContext(ctx, q, ulid))
}

// ExecRequestBorrow runs the request preconditions and the insert in one
// transaction. The (student_id, book_id, active) unique key backs up the
// duplicate check, so a racing second request loses on the insert.
func (s *Store) ExecRequestBorrow(ctx context.Context, m *Borrow) error {
	return db.RunInTxRetry(ctx, s.conn, nil, func(ctx context.Context, tx db.DBTX) error {
		var fineDue int64
		if err := tx.QueryRowContext(ctx, `SELECT fine_due FROM students WHERE student_id = ?`, m.StudentID).Scan(&fineDue); err != nil {
			if err == sql.ErrNoRows {
				return apperr.ErrNotFound("student not found")
			}
			return err
		}
		if fineDue > 0 {
			return apperr.ErrPolicy("outstanding fine must be paid before borrowing")
		}

		// Availability is deliberately not checked here: copies may turn
		// over between request and approval, the approve path re-checks.
		if _, err := catalog.GetTx(ctx, tx, m.BookID); err != nil {
			return err
		}

		var active int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM borrows WHERE student_id = ? AND active = 1`, m.StudentID).Scan(&active); err != nil {
			return err
		}
		if active >= MaxActiveBorrows {
			return apperr.ErrPolicy(fmt.Sprintf("borrow limit of %d reached", MaxActiveBorrows))
		}

		const q = `
		INSERT INTO borrows (borrow_ulid, student_id, book_id, status, active)
		VALUES (?, ?, ?, ?, 1)`
		res, err := tx.ExecContext(ctx, q, m.BorrowULID, m.StudentID, m.BookID, StatusPending)
		if err != nil {
			if db.IsDuplicate(err) {
				return apperr.ErrPolicy("you already have a pending request or issued copy of this book")
			}
			return err
		}
		id, _ := res.LastInsertId()
		m.BorrowID = id
		m.Status = StatusPending
		return nil
	})
}

// ExecApprove flips PENDING to ISSUED, stamps the loan window and takes a
// copy, all or nothing. Zero copies leaves the request pending.
func (s *Store) ExecApprove(ctx context.Context, borrowID int64, librarianID string, now time.Time) (*Borrow, error) {
	var out *Borrow
	err := db.RunInTxRetry(ctx, s.conn, nil, func(ctx context.Context, tx db.DBTX) error {
		b, err := GetBorrowTx(ctx, tx, borrowID)
		if err != nil {
			return err
		}
		if b.Status != StatusPending {
			return apperr.ErrInvalidState("request already processed")
		}

		if err := catalog.AdjustCopiesTx(ctx, tx, b.BookID, -1); err != nil {
			return err
		}

		due := now.AddDate(0, 0, LoanPeriodDays)
		const q = `
		UPDATE borrows
		SET status = ?, issue_date = ?, due_date = ?, librarian_id = ?
		WHERE borrow_id = ? AND status = ?`
		res, err := tx.ExecContext(ctx, q, StatusIssued, now, due, librarianID, borrowID, StatusPending)
		if err != nil {
			return err
		}
		aff, _ := res.RowsAffected()
		if aff == 0 {
			return apperr.ErrInvalidState("request already processed")
		}

		b.Status = StatusIssued
		b.IssueDate = sql.NullTime{Time: now, Valid: true}
		b.DueDate = sql.NullTime{Time: due, Valid: true}
		b.LibrarianID = sql.NullString{String: librarianID, Valid: true}
		out = b
		return nil
	})
	return out, err
}

// ExecReject abandons a PENDING request. The record stays as history but
// stops counting against the student's active borrows.
func (s *Store) ExecReject(ctx context.Context, borrowID int64, librarianID string) (*Borrow, error) {
	var out *Borrow
	err := db.RunInTxRetry(ctx, s.conn, nil, func(ctx context.Context, tx db.DBTX) error {
		b, err := GetBorrowTx(ctx, tx, borrowID)
		if err != nil {
			return err
		}
		if b.Status != StatusPending {
			return apperr.ErrInvalidState("request already processed")
		}
		const q = `
		UPDATE borrows
		SET status = ?, librarian_id = ?, active = NULL
		WHERE borrow_id = ? AND status = ?`
		res, err := tx.ExecContext(ctx, q, StatusRejected, librarianID, borrowID, StatusPending)
		if err != nil {
			return err
		}
		aff, _ := res.RowsAffected()
		if aff == 0 {
			return apperr.ErrInvalidState("request already processed")
		}
		b.Status = StatusRejected
		b.LibrarianID = sql.NullString{String: librarianID, Valid: true}
		out = b
		return nil
	})
	return out, err
}

// ExecReturn closes an ISSUED record: return date, copy back on the
// shelf, and a fine when the due date was missed. The fine and the
// student's fine_due move in this same transaction.
func (s *Store) ExecReturn(ctx context.Context, borrowID int64, now time.Time) (*Borrow, *fines.Fine, error) {
	var (
		out  *Borrow
		fine *fines.Fine
	)
	err := db.RunInTxRetry(ctx, s.conn, nil, func(ctx context.Context, tx db.DBTX) error {
		fine = nil
		b, err := GetBorrowTx(ctx, tx, borrowID)
		if err != nil {
			return err
		}
		switch b.Status {
		case StatusIssued:
		case StatusReturned:
			return apperr.ErrInvalidState("book already returned")
		default:
			return apperr.ErrInvalidState("borrow is not issued")
		}

		const q = `
		UPDATE borrows
		SET status = ?, return_date = ?, active = NULL
		WHERE borrow_id = ? AND status = ?`
		res, err := tx.ExecContext(ctx, q, StatusReturned, now, borrowID, StatusIssued)
		if err != nil {
			return err
		}
		aff, _ := res.RowsAffected()
		if aff == 0 {
			return apperr.ErrInvalidState("book already returned")
		}

		if err := catalog.AdjustCopiesTx(ctx, tx, b.BookID, 1); err != nil {
			return err
		}

		if late := daysLate(now, b.DueDate.Time); late > 0 {
			f := &fines.Fine{
				BorrowID:  b.BorrowID,
				StudentID: b.StudentID,
				Amount:    late * FineRatePerDay,
				Reason:    fmt.Sprintf("returned %d day(s) late", late),
				FineDate:  now,
			}
			if err := fines.RecordFineTx(ctx, tx, f); err != nil {
				return err
			}
			fine = f
		}

		b.Status = StatusReturned
		b.ReturnDate = sql.NullTime{Time: now, Valid: true}
		out = b
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, fine, nil
}

// ---- Queries ----

type borrowRow struct {
	Borrow
	BookTitle       string
	Author          string
	Genre           string
	FirstName       string
	LastName        string
	Email           string
	AvailableCopies int
}

const joinedColumns = `
	b.borrow_id, b.borrow_ulid, b.student_id, b.book_id, b.status,
	b.issue_date, b.due_date, b.return_date, b.librarian_id,
	bk.title, bk.author, bk.genre,
	s.first_name, s.last_name, s.email,
	bk.available_copies`

const joinedTables = `
	FROM borrows b
	JOIN books bk ON bk.book_id = b.book_id
	JOIN students s ON s.student_id = b.student_id`

func (s *Store) queryRows(ctx context.Context, q string, args ...any) ([]borrowRow, error) {
	rows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []borrowRow
	for rows.Next() {
		var r borrowRow
		if err := rows.Scan(
			&r.BorrowID, &r.BorrowULID, &r.StudentID, &r.BookID, &r.Status,
			&r.IssueDate, &r.DueDate, &r.ReturnDate, &r.LibrarianID,
			&r.BookTitle, &r.Author, &r.Genre,
			&r.FirstName, &r.LastName, &r.Email,
			&r.AvailableCopies,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListForStudent returns a student's pending and issued records, pending
// first, newest within each group.
func (s *Store) ListForStudent(ctx context.Context, studentID int64) ([]borrowRow, error) {
	const q = `SELECT` + joinedColumns + joinedTables + `
	WHERE b.student_id = ? AND b.status IN (?, ?)
	ORDER BY
	  CASE b.status WHEN 'PENDING' THEN 1 WHEN 'ISSUED' THEN 2 END,
	  b.borrow_id DESC`
	return s.queryRows(ctx, q, studentID, StatusPending, StatusIssued)
}

// ListPending feeds the librarian issue-requests queue, oldest first.
func (s *Store) ListPending(ctx context.Context) ([]borrowRow, error) {
	const q = `SELECT` + joinedColumns + joinedTables + `
	WHERE b.status = ?
	ORDER BY b.borrow_id ASC`
	return s.queryRows(ctx, q, StatusPending)
}

// ListIssued returns books currently out.
func (s *Store) ListIssued(ctx context.Context) ([]borrowRow, error) {
	const q = `SELECT` + joinedColumns + joinedTables + `
	WHERE b.status = ?
	ORDER BY b.issue_date DESC`
	return s.queryRows(ctx, q, StatusIssued)
}

// ListHistory returns every record, newest first.
func (s *Store) ListHistory(ctx context.Context) ([]borrowRow, error) {
	const q = `SELECT` + joinedColumns + joinedTables + `
	ORDER BY b.borrow_id DESC`
	return s.queryRows(ctx, q)
}
