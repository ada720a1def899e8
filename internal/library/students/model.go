package students

// RegStatus tracks the admin approval of a signup.
type RegStatus string

const (
	RegPending  RegStatus = "PENDING"
	RegApproved RegStatus = "APPROVED"
	RegRejected RegStatus = "REJECTED"
)

// Student is one row of the students table. FineDue is the denormalized
// sum of unpaid fines; the fine ledger keeps it in step transactionally.
type Student struct {
	StudentID int64
	FirstName string
	LastName  string
	Email     string
	FineDue   int64
	Status    RegStatus
}
