package borrows

import (
	"database/sql"
	"time"
)

// Status is the lifecycle of a borrow record.
// PENDING and ISSUED count as active; RETURNED and REJECTED are terminal.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusIssued   Status = "ISSUED"
	StatusReturned Status = "RETURNED"
	StatusRejected Status = "REJECTED"
)

// Lending policy. The request path checks the cap and the outstanding
// balance; the fine rate applies per started day of lateness.
const (
	MaxActiveBorrows = 3
	LoanPeriodDays   = 14
	FineRatePerDay   = 10
)

// Borrow is one row of the borrows table. Dates stay NULL until the
// transition that owns them runs: issue/due on approval, return on return.
type Borrow struct {
	BorrowID    int64
	BorrowULID  string
	StudentID   int64
	BookID      int64
	Status      Status
	IssueDate   sql.NullTime
	DueDate     sql.NullTime
	ReturnDate  sql.NullTime
	LibrarianID sql.NullString
}

// daysLate counts started days past the due instant. A return exactly at
// the due date is on time.
func daysLate(returnedAt, due time.Time) int64 {
	if !returnedAt.After(due) {
		return 0
	}
	d := returnedAt.Sub(due)
	days := int64(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}
