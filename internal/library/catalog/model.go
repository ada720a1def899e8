package catalog

// Book is one row of the books table. AvailableCopies is only ever
// mutated through AdjustCopiesTx.
type Book struct {
	BookID          int64
	Title           string
	Author          string
	Genre           string
	YearPublished   int
	AvailableCopies int
}
