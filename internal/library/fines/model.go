package fines

import "time"

// Fine is one row of the fines table. A borrow record ends up with at
// most one fine; the unique key on borrow_id enforces that.
type Fine struct {
	FineID    int64
	BorrowID  int64
	StudentID int64
	Amount    int64
	Reason    string
	FineDate  time.Time
	Paid      bool
}

// fineRow carries the book context joined in for display.
type fineRow struct {
	Fine
	BookTitle string
	Author    string
}
