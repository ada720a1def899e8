package fines

import "time"

type FineResponse struct {
	FineID    int64     `json:"fine_id"`
	BorrowID  int64     `json:"borrow_id"`
	StudentID int64     `json:"student_id"`
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason"`
	FineDate  time.Time `json:"fine_date"`
	Paid      bool      `json:"paid"`
	BookTitle string    `json:"book_title,omitempty"`
	Author    string    `json:"author,omitempty"`
}

// StudentFinesResponse mirrors what the student dashboard shows: the
// outstanding total plus the unpaid fines behind it.
type StudentFinesResponse struct {
	FineDue int64          `json:"fine_due"`
	Fines   []FineResponse `json:"fines"`
}

type PayAllResponse struct {
	StudentID  int64 `json:"student_id"`
	AmountPaid int64 `json:"amount_paid"`
}

func toResponse(r *fineRow) FineResponse {
	return FineResponse{
		FineID:    r.FineID,
		BorrowID:  r.BorrowID,
		StudentID: r.StudentID,
		Amount:    r.Amount,
		Reason:    r.Reason,
		FineDate:  r.FineDate,
		Paid:      r.Paid,
		BookTitle: r.BookTitle,
		Author:    r.Author,
	}
}
