package catalog

type CreateBookRequest struct {
	Title         string `json:"title" binding:"required"`
	Author        string `json:"author" binding:"required"`
	Genre         string `json:"genre"`
	YearPublished int    `json:"year_published"`
	Copies        int    `json:"copies"`
}

type UpdateBookRequest struct {
	Title         string `json:"title" binding:"required"`
	Author        string `json:"author" binding:"required"`
	Genre         string `json:"genre"`
	YearPublished int    `json:"year_published"`
	Copies        int    `json:"copies"`
}

type BookResponse struct {
	BookID          int64  `json:"book_id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	Genre           string `json:"genre"`
	YearPublished   int    `json:"year_published"`
	AvailableCopies int    `json:"available_copies"`
	// Number of standing reservations, shown so staff can gauge demand.
	ReservationCount int `json:"reservation_count"`
}

func toResponse(b *Book, reservations int) BookResponse {
	return BookResponse{
		BookID:           b.BookID,
		Title:            b.Title,
		Author:           b.Author,
		Genre:            b.Genre,
		YearPublished:    b.YearPublished,
		AvailableCopies:  b.AvailableCopies,
		ReservationCount: reservations,
	}
}
