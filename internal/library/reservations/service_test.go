package reservations

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LMS-backend/internal/library/apperr"
	"LMS-backend/internal/platform/db/dbtest"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func TestReserve(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewService(conn)
	svc.clock = clock

	student := dbtest.SeedStudent(t, conn, "resv@test.edu")
	book := dbtest.SeedBook(t, conn, "Dune", 0)

	resp, err := svc.Reserve(ctx, student, book)
	require.NoError(t, err)
	assert.NotZero(t, resp.ReservationID)
	assert.Equal(t, 1, resp.ReservationCount)
	assert.True(t, resp.ReservationDate.Equal(clock.now))
}

func TestReserveAvailableBook(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	svc := NewService(conn)
	student := dbtest.SeedStudent(t, conn, "avail@test.edu")
	book := dbtest.SeedBook(t, conn, "Dune", 2)

	// Reservations are for unavailable books; with copies on the shelf
	// the student should borrow instead.
	_, err := svc.Reserve(ctx, student, book)
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
}

func TestReserveDuplicate(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	svc := NewService(conn)
	student := dbtest.SeedStudent(t, conn, "dup@test.edu")
	book := dbtest.SeedBook(t, conn, "Dune", 0)

	_, err := svc.Reserve(ctx, student, book)
	require.NoError(t, err)

	_, err = svc.Reserve(ctx, student, book)
	assert.Equal(t, apperr.CodePolicyViolation, apperr.CodeOf(err))

	n, err := svc.CountFor(ctx, book)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReserveUnknownBook(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	svc := NewService(conn)
	student := dbtest.SeedStudent(t, conn, "nf@test.edu")

	_, err := svc.Reserve(ctx, student, 99)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestListForBookQueueOrder(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewService(conn)
	svc.clock = clock

	book := dbtest.SeedBook(t, conn, "Dune", 0)
	a := dbtest.SeedStudent(t, conn, "a@test.edu")
	b := dbtest.SeedStudent(t, conn, "b@test.edu")

	_, err := svc.Reserve(ctx, a, book)
	require.NoError(t, err)
	clock.now = clock.now.Add(time.Hour)
	_, err = svc.Reserve(ctx, b, book)
	require.NoError(t, err)

	got, err := svc.ListForBook(ctx, book)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// First come, first served.
	assert.Equal(t, a, got[0].StudentID)
	assert.Equal(t, b, got[1].StudentID)
	assert.Equal(t, "Dune", got[0].BookTitle)
}

func TestListForStudent(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	svc := NewService(conn)
	student := dbtest.SeedStudent(t, conn, "mine@test.edu")
	b1 := dbtest.SeedBook(t, conn, "Dune", 0)
	b2 := dbtest.SeedBook(t, conn, "Emma", 0)

	_, err := svc.Reserve(ctx, student, b1)
	require.NoError(t, err)
	_, err = svc.Reserve(ctx, student, b2)
	require.NoError(t, err)

	got, err := svc.ListForStudent(ctx, student)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
