package borrows

import (
	"time"

	"LMS-backend/internal/library/fines"
)

type CreateBorrowRequest struct {
	BookID int64 `json:"book_id" binding:"required"`
}

type ReturnRequest struct {
	BorrowID int64 `json:"borrow_id" binding:"required"`
}

type BorrowResponse struct {
	BorrowID    int64      `json:"borrow_id"`
	BorrowULID  string     `json:"borrow_ulid"`
	StudentID   int64      `json:"student_id"`
	BookID      int64      `json:"book_id"`
	Status      Status     `json:"status"`
	IssueDate   *time.Time `json:"issue_date,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	ReturnDate  *time.Time `json:"return_date,omitempty"`
	LibrarianID *string    `json:"librarian_id,omitempty"`
	BookTitle   string     `json:"book_title,omitempty"`
	Author      string     `json:"author,omitempty"`
	Genre       string     `json:"genre,omitempty"`
	StudentName string     `json:"student_name,omitempty"`
	Email       string     `json:"email,omitempty"`
}

// ReturnResponse reports the closed record and, for late returns, the
// fine created alongside it.
type ReturnResponse struct {
	Borrow BorrowResponse      `json:"borrow"`
	OnTime bool                `json:"on_time"`
	Fine   *fines.FineResponse `json:"fine,omitempty"`
}

// PendingRequestResponse is the librarian issue-requests view: the
// request plus enough context to decide on it.
type PendingRequestResponse struct {
	BorrowResponse
	AvailableCopies int `json:"available_copies"`
}

func toResponse(b *Borrow) BorrowResponse {
	resp := BorrowResponse{
		BorrowID:   b.BorrowID,
		BorrowULID: b.BorrowULID,
		StudentID:  b.StudentID,
		BookID:     b.BookID,
		Status:     b.Status,
	}
	if b.IssueDate.Valid {
		v := b.IssueDate.Time
		resp.IssueDate = &v
	}
	if b.DueDate.Valid {
		v := b.DueDate.Time
		resp.DueDate = &v
	}
	if b.ReturnDate.Valid {
		v := b.ReturnDate.Time
		resp.ReturnDate = &v
	}
	if b.LibrarianID.Valid {
		v := b.LibrarianID.String
		resp.LibrarianID = &v
	}
	return resp
}
