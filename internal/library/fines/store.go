package fines

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

// RecordFineTx inserts a fine and bumps the student's fine_due aggregate
// on the caller's transaction. The return transition is the only writer.
func RecordFineTx(ctx context.Context, tx db.DBTX, f *Fine) error {
	const insQ = `
	INSERT INTO fines (borrow_id, student_id, amount, reason, fine_date, paid)
	VALUES (?, ?, ?, ?, ?, 0)`
	res, err := tx.ExecContext(ctx, insQ, f.BorrowID, f.StudentID, f.Amount, f.Reason, f.FineDate)
	if err != nil {
		if db.IsDuplicate(err) {
			return apperr.ErrInvalidState("fine already recorded for this borrow")
		}
		return err
	}
	id, _ := res.LastInsertId()
	f.FineID = id

	const aggQ = `UPDATE students SET fine_due = fine_due + ? WHERE student_id = ?`
	aggRes, err := tx.ExecContext(ctx, aggQ, f.Amount, f.StudentID)
	if err != nil {
		return err
	}
	aff, _ := aggRes.RowsAffected()
	if aff != 1 {
		return apperr.ErrNotFound("student not found")
	}
	return nil
}

// ExecMarkPaid settles a single fine. The status flip is a conditional
// UPDATE so a concurrent double-pay cannot subtract the aggregate twice.
func (s *Store) ExecMarkPaid(ctx context.Context, fineID int64) (*Fine, error) {
	var out Fine
	err := db.RunInTxRetry(ctx, s.conn, nil, func(ctx context.Context, tx db.DBTX) error {
		const getQ = `SELECT fine_id, borrow_id, student_id, amount, reason, fine_date, paid FROM fines WHERE fine_id = ?`
		if err := tx.QueryRowContext(ctx, getQ, fineID).Scan(
			&out.FineID, &out.BorrowID, &out.StudentID, &out.Amount, &out.Reason, &out.FineDate, &out.Paid,
		); err != nil {
			if err == sql.ErrNoRows {
				return apperr.ErrNotFound("fine not found")
			}
			return err
		}

		res, err := tx.ExecContext(ctx, `UPDATE fines SET paid = 1 WHERE fine_id = ? AND paid = 0`, fineID)
		if err != nil {
			return err
		}
		aff, _ := res.RowsAffected()
		if aff == 0 {
			return apperr.ErrInvalidState("fine already paid")
		}
		out.Paid = true

		_, err = tx.ExecContext(ctx, `UPDATE students SET fine_due = fine_due - ? WHERE student_id = ?`, out.Amount, out.StudentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ExecPayAll settles every unpaid fine of a student and returns the total
// amount cleared. A student with no unpaid fines clears zero.
func (s *Store) ExecPayAll(ctx context.Context, studentID int64) (int64, error) {
	var total int64
	err := db.RunInTxRetry(ctx, s.conn, nil, func(ctx context.Context, tx db.DBTX) error {
		total = 0
		const sumQ = `SELECT COALESCE(SUM(amount), 0) FROM fines WHERE student_id = ? AND paid = 0`
		if err := tx.QueryRowContext(ctx, sumQ, studentID).Scan(&total); err != nil {
			return err
		}
		if total == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `UPDATE fines SET paid = 1 WHERE student_id = ? AND paid = 0`, studentID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE students SET fine_due = fine_due - ? WHERE student_id = ?`, total, studentID)
		return err
	})
	return total, err
}

const detailColumns = `
	f.fine_id, f.borrow_id, f.student_id, f.amount, f.reason, f.fine_date, f.paid,
	bk.title, bk.author`

const detailJoins = `
	FROM fines f
	JOIN borrows b ON b.borrow_id = f.borrow_id
	JOIN books bk ON bk.book_id = b.book_id`

func (s *Store) UnpaidFor(ctx context.Context, studentID int64) ([]fineRow, error) {
	const q = `SELECT` + detailColumns + detailJoins + `
	WHERE f.student_id = ? AND f.paid = 0
	ORDER BY f.fine_date DESC`
	return s.queryRows(ctx, q, studentID)
}

func (s *Store) AllUnpaid(ctx context.Context) ([]fineRow, error) {
	const q = `SELECT` + detailColumns + detailJoins + `
	WHERE f.paid = 0
	ORDER BY f.fine_date DESC`
	return s.queryRows(ctx, q)
}

func (s *Store) queryRows(ctx context.Context, q string, args ...any) ([]fineRow, error) {
	rows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []fineRow
	for rows.Next() {
		var r fineRow
		if err := rows.Scan(
			&r.FineID, &r.BorrowID, &r.StudentID, &r.Amount, &r.Reason, &r.FineDate, &r.Paid,
			&r.BookTitle, &r.Author,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UnpaidTotal reads the denormalized aggregate.
func (s *Store) UnpaidTotal(ctx context.Context, studentID int64) (int64, error) {
	const q = `SELECT fine_due FROM students WHERE student_id = ?`
	var total int64
	if err := s.conn.QueryRowContext(ctx, q, studentID).Scan(&total); err != nil {
		if err == sql.ErrNoRows {
			return 0, apperr.ErrNotFound("student not found")
		}
		return 0, err
	}
	return total, nil
}
