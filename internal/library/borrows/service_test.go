package borrows

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LMS-backend/internal/library/apperr"
	"LMS-backend/internal/library/fines"
	"LMS-backend/internal/platform/db/dbtest"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

type seqIDGen struct{ n int }

func (g *seqIDGen) NewULID(time.Time) string {
	g.n++
	return fmt.Sprintf("01TESTULID%016d", g.n)
}

func newTestService(t *testing.T) (*Service, *fakeClock, *sql.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewService(conn)
	svc.clock = clock
	svc.id = &seqIDGen{}
	return svc, clock, conn
}

func availableCopies(t *testing.T, conn *sql.DB, bookID int64) int {
	t.Helper()
	var n int
	if err := conn.QueryRow(`SELECT available_copies FROM books WHERE book_id = ?`, bookID).Scan(&n); err != nil {
		t.Fatalf("available copies: %v", err)
	}
	return n
}

func fineDue(t *testing.T, conn *sql.DB, studentID int64) int64 {
	t.Helper()
	var n int64
	if err := conn.QueryRow(`SELECT fine_due FROM students WHERE student_id = ?`, studentID).Scan(&n); err != nil {
		t.Fatalf("fine_due: %v", err)
	}
	return n
}

func countRows(t *testing.T, conn *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := conn.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestDaysLate(t *testing.T) {
	due := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	assert.EqualValues(t, 0, daysLate(due, due))
	assert.EqualValues(t, 0, daysLate(due.Add(-time.Hour), due))
	assert.EqualValues(t, 1, daysLate(due.Add(time.Minute), due))
	assert.EqualValues(t, 1, daysLate(due.Add(24*time.Hour), due))
	assert.EqualValues(t, 2, daysLate(due.Add(24*time.Hour+time.Second), due))
	assert.EqualValues(t, 3, daysLate(due.Add(72*time.Hour), due))
}

func TestRequestBorrow(t *testing.T) {
	ctx := context.Background()
	svc, _, conn := newTestService(t)
	student := dbtest.SeedStudent(t, conn, "req@test.edu")
	book := dbtest.SeedBook(t, conn, "Dune", 2)

	resp, err := svc.RequestBorrow(ctx, student, book)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, resp.Status)
	assert.NotEmpty(t, resp.BorrowULID)
	assert.Nil(t, resp.IssueDate)
	assert.Nil(t, resp.DueDate)

	// Filing a request does not consume a copy.
	assert.Equal(t, 2, availableCopies(t, conn, book))
}

func TestRequestBorrowUnknownBook(t *testing.T) {
	ctx := context.Background()
	svc, _, conn := newTestService(t)
	student := dbtest.SeedStudent(t, conn, "nf@test.edu")

	_, err := svc.RequestBorrow(ctx, student, 9999)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestRequestBorrowDuplicateActive(t *testing.T) {
	ctx := context.Background()
	svc, _, conn := newTestService(t)
	student := dbtest.SeedStudent(t, conn, "dup@test.edu")
	book := dbtest.SeedBook(t, conn, "Dune", 2)

	_, err := svc.RequestBorrow(ctx, student, book)
	require.NoError(t, err)

	_, err = svc.RequestBorrow(ctx, student, book)
	assert.Equal(t, apperr.CodePolicyViolation, apperr.CodeOf(err))
	assert.Equal(t, 1, countRows(t, conn, `SELECT COUNT(*) FROM borrows WHERE student_id = ?`, student))
}

func TestRequestBorrowCap(t *testing.T) {
	ctx := context.Background()
	svc, _, conn := newTestService(t)
	student := dbtest.SeedStudent(t, conn, "cap@test.edu")

	for i := 0; i < MaxActiveBorrows; i++ {
		book := dbtest.SeedBook(t, conn, fmt.Sprintf("Book %d", i), 1)
		_, err := svc.RequestBorrow(ctx, student, book)
		require.NoError(t, err)
	}

	extra := dbtest.SeedBook(t, conn, "One Too Many", 1)
	_, err := svc.RequestBorrow(ctx, student, extra)
	assert.Equal(t, apperr.CodePolicyViolation, apperr.CodeOf(err))
}

func TestRequestBorrowCapFreesAfterReturn(t *testing.T) {
	ctx := context.Background()
	svc, _, conn := newTestService(t)
	student := dbtest.SeedStudent(t, conn, "capfree@test.edu")

	var first int64
	for i := 0; i < MaxActiveBorrows; i++ {
		book := dbtest.SeedBook(t, conn, fmt.Sprintf("Book %d", i), 1)
		resp, err := svc.RequestBorrow(ctx, student, book)
		require.NoError(t, err)
		if i == 0 {
			first = resp.BorrowID
		}
	}

	_, err := svc.ApproveBorrow(ctx, first, "lib@test.edu")
	require.NoError(t, err)
	_, err = svc.ReturnBorrow(ctx, first)
	require.NoError(t, err)

	book := dbtest.SeedBook(t, conn, "Now It Fits", 1)
	_, err = svc.RequestBorrow(ctx, student, book)
	assert.NoError(t, err)
}

func TestRequestBorrowBlockedByOutstandingFine(t *testing.T) {
	ctx := context.Background()
	svc, _, conn := newTestService(t)
	student := dbtest.SeedStudent(t, conn, "fined@test.edu")
	book := dbtest.SeedBook(t, conn, "Dune", 1)

	_, err := conn.Exec(`UPDATE students SET fine_due = 30 WHERE student_id = ?`, student)
	require.NoError(t, err)

	_, err = svc.RequestBorrow(ctx, student, book)
	assert.Equal(t, apperr.CodePolicyViolation, apperr.CodeOf(err))
	// Rejected requests leave nothing behind.
	assert.Equal(t, 0, countRows(t, conn, `SELECT COUNT(*) FROM borrows WHERE student_id = ?`, student))
}

func TestApproveBorrow(t *testing.T) {
	ctx := context.Background()
	svc, clock, conn := newTestService(t)
	student := dbtest.SeedStudent(t, conn, "appr@test.edu")
	book := dbtest.SeedBook(t, conn, "Dune", 2)

	req, err := svc.RequestBorrow(ctx, student, book)
	require.NoError(t, err)

	issued, err := svc.ApproveBorrow(ctx, req.BorrowID, "lib@test.edu")
	require.NoError(t, err)
	assert.Equal(t, StatusIssued, issued.Status)
	require.NotNil(t, issued.IssueDate)
	require.NotNil(t, issued.DueDate)
	assert.True(t, issued.IssueDate.Equal(clock.now))
	assert.True(t, issued.DueDate.Equal(clock.now.AddDate(0, 0, LoanPeriodDays)))
	require.NotNil(t, issued.LibrarianID)
	assert.Equal(t, "lib@test.edu", *issued.LibrarianID)

	assert.Equal(t, 1, availableCopies(t, conn, book))
}

func TestApproveBorrowNoCopies(t *testing.T) {
	ctx := context.Background()
	svc, _, conn := newTestService(t)
	a := dbtest.SeedStudent(t, conn, "a@test.edu")
	b := dbtest.SeedStudent(t, conn, "b@test.edu")
	book := dbtest.SeedBook(t, conn, "Dune", 1)

	reqA, err := svc.RequestBorrow(ctx, a, book)
	require.NoError(t, err)
	reqB, err := svc.RequestBorrow(ctx, b, book)
	require.NoError(t, err)

	_, err = svc.ApproveBorrow(ctx, reqA.BorrowID, "lib@test.edu")
	require.NoError(t, err)

	_, err = svc.ApproveBorrow(ctx, reqB.BorrowID, "lib@test.edu")
	assert.Equal(t, apperr.CodeResourceExhausted, apperr.CodeOf(err))

	// The losing request stays PENDING and copies stay at zero.
	got, err := svc.GetByKey(ctx, fmt.Sprint(reqB.BorrowID))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, 0, availableCopies(t, conn, book))
}

func TestApproveBorrowTwice(t *testing.T) {
	ctx := context.Background()
	svc, _, conn := newTestService(t)
	student := dbtest.SeedStudent(t, conn, "twice@test.edu")
	book := dbtest.SeedBook(t, conn, "Dune", 5)

	req, err := svc.RequestBorrow(ctx, student, book)
	require.NoError(t, err)
	_, err = svc.ApproveBorrow(ctx, req.BorrowID, "lib@test.edu")
	require.NoError(t, err)

	_, err = svc.ApproveBorrow(ctx, req.BorrowID, "lib@test.edu")
	assert.Equal(t, apperr.CodeInvalidState, apperr.CodeOf(err))
	// The second attempt must not take another copy.
	assert.Equal(t, 4, availableCopies(t, conn, book))
}

func TestRejectBorrow(t *testing.T) {
	ctx := context.Background()
	svc, _, conn := newTestService(t)
	student := dbtest.SeedStudent(t, conn, "rej@test.edu")
	book := dbtest.SeedBook(t, conn, "Dune", 1)

	req, err := svc.RequestBorrow(ctx, student, book)
	require.NoError(t, err)

	rejected, err := svc.RejectBorrow(ctx, req.BorrowID, "lib@test.edu")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)
	assert.Equal(t, 1, availableCopies(t, conn, book))

	// A rejection releases the uniqueness slot, so the student can re-request.
	_, err = svc.RequestBorrow(ctx, student, book)
	assert.NoError(t, err)

	// But rejecting an already decided record fails.
	_, err = svc.RejectBorrow(ctx, req.BorrowID, "lib@test.edu")
	assert.Equal(t, apperr.CodeInvalidState, apperr.CodeOf(err))
}

func TestReturnOnTime(t *testing.T) {
	ctx := context.Background()
	svc, clock, conn := newTestService(t)
	student := dbtest.SeedStudent(t, conn, "ontime@test.edu")
	book := dbtest.SeedBook(t, conn, "Dune", 1)

	req, err := svc.RequestBorrow(ctx, student, book)
	require.NoError(t, err)
	_, err = svc.ApproveBorrow(ctx, req.BorrowID, "lib@test.edu")
	require.NoError(t, err)

	clock.advance(13 * 24 * time.Hour)
	resp, err := svc.ReturnBorrow(ctx, req.BorrowID)
	require.NoError(t, err)
	assert.True(t, resp.OnTime)
	assert.Nil(t, resp.Fine)
	assert.Equal(t, StatusReturned, resp.Borrow.Status)
	assert.Equal(t, 1, availableCopies(t, conn, book))
	assert.EqualValues(t, 0, fineDue(t, conn, student))
}

func TestReturnAtDueInstant(t *testing.T) {
	ctx := context.Background()
	svc, clock, conn := newTestService(t)
	student := dbtest.SeedStudent(t, conn, "edge@test.edu")
	book := dbtest.SeedBook(t, conn, "Dune", 1)

	req, err := svc.RequestBorrow(ctx, student, book)
	require.NoError(t, err)
	_, err = svc.ApproveBorrow(ctx, req.BorrowID, "lib@test.edu")
	require.NoError(t, err)

	clock.advance(LoanPeriodDays * 24 * time.Hour)
	resp, err := svc.ReturnBorrow(ctx, req.BorrowID)
	require.NoError(t, err)
	assert.True(t, resp.OnTime)
	assert.Nil(t, resp.Fine)
}

func TestReturnLateCreatesFine(t *testing.T) {
	ctx := context.Background()
	svc, clock, conn := newTestService(t)
	student := dbtest.SeedStudent(t, conn, "late@test.edu")
	book := dbtest.SeedBook(t, conn, "Dune", 1)

	req, err := svc.RequestBorrow(ctx, student, book)
	require.NoError(t, err)
	_, err = svc.ApproveBorrow(ctx, req.BorrowID, "lib@test.edu")
	require.NoError(t, err)

	clock.advance((LoanPeriodDays + 3) * 24 * time.Hour)
	resp, err := svc.ReturnBorrow(ctx, req.BorrowID)
	require.NoError(t, err)
	assert.False(t, resp.OnTime)
	require.NotNil(t, resp.Fine)
	assert.EqualValues(t, 3*FineRatePerDay, resp.Fine.Amount)
	assert.False(t, resp.Fine.Paid)

	// The fine lands in the ledger and the aggregate in the same commit.
	assert.EqualValues(t, 30, fineDue(t, conn, student))
	assert.Equal(t, 1, countRows(t, conn, `SELECT COUNT(*) FROM fines WHERE borrow_id = ?`, req.BorrowID))
}

func TestReturnPartialDayRoundsUp(t *testing.T) {
	ctx := context.Background()
	svc, clock, conn := newTestService(t)
	student := dbtest.SeedStudent(t, conn, "partial@test.edu")
	book := dbtest.SeedBook(t, conn, "Dune", 1)

	req, err := svc.RequestBorrow(ctx, student, book)
	require.NoError(t, err)
	_, err = svc.ApproveBorrow(ctx, req.BorrowID, "lib@test.edu")
	require.NoError(t, err)

	clock.advance(LoanPeriodDays*24*time.Hour + 2*time.Hour)
	resp, err := svc.ReturnBorrow(ctx, req.BorrowID)
	require.NoError(t, err)
	require.NotNil(t, resp.Fine)
	assert.EqualValues(t, FineRatePerDay, resp.Fine.Amount)
}

func TestReturnTwice(t *testing.T) {
	ctx := context.Background()
	svc, clock, conn := newTestService(t)
	student := dbtest.SeedStudent(t, conn, "double@test.edu")
	book := dbtest.SeedBook(t, conn, "Dune", 1)

	req, err := svc.RequestBorrow(ctx, student, book)
	require.NoError(t, err)
	_, err = svc.ApproveBorrow(ctx, req.BorrowID, "lib@test.edu")
	require.NoError(t, err)

	clock.advance((LoanPeriodDays + 2) * 24 * time.Hour)
	_, err = svc.ReturnBorrow(ctx, req.BorrowID)
	require.NoError(t, err)

	_, err = svc.ReturnBorrow(ctx, req.BorrowID)
	assert.Equal(t, apperr.CodeInvalidState, apperr.CodeOf(err))

	// No second copy increment, no second fine, no double-charged aggregate.
	assert.Equal(t, 1, availableCopies(t, conn, book))
	assert.Equal(t, 1, countRows(t, conn, `SELECT COUNT(*) FROM fines WHERE borrow_id = ?`, req.BorrowID))
	assert.EqualValues(t, 2*FineRatePerDay, fineDue(t, conn, student))
}

func TestReturnPendingFails(t *testing.T) {
	ctx := context.Background()
	svc, _, conn := newTestService(t)
	student := dbtest.SeedStudent(t, conn, "pendret@test.edu")
	book := dbtest.SeedBook(t, conn, "Dune", 1)

	req, err := svc.RequestBorrow(ctx, student, book)
	require.NoError(t, err)

	_, err = svc.ReturnBorrow(ctx, req.BorrowID)
	assert.Equal(t, apperr.CodeInvalidState, apperr.CodeOf(err))
}

func TestGetByKey(t *testing.T) {
	ctx := context.Background()
	svc, _, conn := newTestService(t)
	student := dbtest.SeedStudent(t, conn, "key@test.edu")
	book := dbtest.SeedBook(t, conn, "Dune", 1)

	req, err := svc.RequestBorrow(ctx, student, book)
	require.NoError(t, err)

	byID, err := svc.GetByKey(ctx, fmt.Sprint(req.BorrowID))
	require.NoError(t, err)
	assert.Equal(t, req.BorrowULID, byID.BorrowULID)

	byULID, err := svc.GetByKey(ctx, req.BorrowULID)
	require.NoError(t, err)
	assert.Equal(t, req.BorrowID, byULID.BorrowID)

	_, err = svc.GetByKey(ctx, "01NOSUCHULID0000000000000000")
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestListForStudentOrdering(t *testing.T) {
	ctx := context.Background()
	svc, _, conn := newTestService(t)
	student := dbtest.SeedStudent(t, conn, "list@test.edu")
	b1 := dbtest.SeedBook(t, conn, "First", 1)
	b2 := dbtest.SeedBook(t, conn, "Second", 1)
	b3 := dbtest.SeedBook(t, conn, "Third", 1)

	r1, err := svc.RequestBorrow(ctx, student, b1)
	require.NoError(t, err)
	_, err = svc.ApproveBorrow(ctx, r1.BorrowID, "lib@test.edu")
	require.NoError(t, err)
	_, err = svc.RequestBorrow(ctx, student, b2)
	require.NoError(t, err)
	_, err = svc.RequestBorrow(ctx, student, b3)
	require.NoError(t, err)

	got, err := svc.ListForStudent(ctx, student)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Pending first, newest within the group, issued last.
	assert.Equal(t, StatusPending, got[0].Status)
	assert.Equal(t, b3, got[0].BookID)
	assert.Equal(t, StatusPending, got[1].Status)
	assert.Equal(t, b2, got[1].BookID)
	assert.Equal(t, StatusIssued, got[2].Status)
	assert.Equal(t, "Test Student", got[2].StudentName)
}

func TestListPendingIncludesAvailability(t *testing.T) {
	ctx := context.Background()
	svc, _, conn := newTestService(t)
	student := dbtest.SeedStudent(t, conn, "queue@test.edu")
	book := dbtest.SeedBook(t, conn, "Dune", 4)

	_, err := svc.RequestBorrow(ctx, student, book)
	require.NoError(t, err)

	got, err := svc.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].AvailableCopies)
	assert.Equal(t, "Dune", got[0].BookTitle)
}

// A late return fines the student, the fine blocks the next request, and
// settling it restores borrowing.
func TestLateFinePaymentRoundtrip(t *testing.T) {
	ctx := context.Background()
	svc, clock, conn := newTestService(t)
	student := dbtest.SeedStudent(t, conn, "roundtrip@test.edu")
	book := dbtest.SeedBook(t, conn, "Dune", 1)

	req, err := svc.RequestBorrow(ctx, student, book)
	require.NoError(t, err)
	_, err = svc.ApproveBorrow(ctx, req.BorrowID, "lib@test.edu")
	require.NoError(t, err)

	clock.advance((LoanPeriodDays + 3) * 24 * time.Hour)
	ret, err := svc.ReturnBorrow(ctx, req.BorrowID)
	require.NoError(t, err)
	require.NotNil(t, ret.Fine)
	assert.EqualValues(t, 30, ret.Fine.Amount)

	_, err = svc.RequestBorrow(ctx, student, book)
	assert.Equal(t, apperr.CodePolicyViolation, apperr.CodeOf(err))

	paid, err := fines.NewService(conn).PayAll(ctx, student)
	require.NoError(t, err)
	assert.EqualValues(t, 30, paid.AmountPaid)

	_, err = svc.RequestBorrow(ctx, student, book)
	assert.NoError(t, err)
}

// TestConcurrentApproveSingleCopy races two approvals for the last copy.
// Exactly one must win; the loser sees either RESOURCE_EXHAUSTED or, if
// the engine reports lock contention past the retry budget, CONFLICT.
func TestConcurrentApproveSingleCopy(t *testing.T) {
	ctx := context.Background()
	svc, _, conn := newTestService(t)
	a := dbtest.SeedStudent(t, conn, "race-a@test.edu")
	b := dbtest.SeedStudent(t, conn, "race-b@test.edu")
	book := dbtest.SeedBook(t, conn, "Dune", 1)

	reqA, err := svc.RequestBorrow(ctx, a, book)
	require.NoError(t, err)
	reqB, err := svc.RequestBorrow(ctx, b, book)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []int64{reqA.BorrowID, reqB.BorrowID} {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			_, errs[i] = svc.ApproveBorrow(ctx, id, "lib@test.edu")
		}(i, id)
	}
	wg.Wait()

	issued := 0
	for _, err := range errs {
		if err == nil {
			issued++
			continue
		}
		code := apperr.CodeOf(err)
		assert.Contains(t, []apperr.Code{apperr.CodeResourceExhausted, apperr.CodeConflict}, code)
	}
	assert.Equal(t, 1, issued)
	assert.Equal(t, 0, availableCopies(t, conn, book))
	assert.Equal(t, 1, countRows(t, conn, `SELECT COUNT(*) FROM borrows WHERE book_id = ? AND status = 'ISSUED'`, book))
}
