package reservations

import "time"

// Reservation is a standing request for a title with no copies on the
// shelf. One per (student, book), ordered by request time.
type Reservation struct {
	ReservationID   int64
	StudentID       int64
	BookID          int64
	ReservationDate time.Time
}

type reservationRow struct {
	Reservation
	BookTitle string
	Author    string
}
