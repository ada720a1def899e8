package db

import (
	"context"
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LMS-backend/internal/platform/db/dbtest"
)

func TestRunInTxCommit(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)

	err := RunInTx(ctx, conn, nil, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO books (title, author, available_copies) VALUES ('A', 'B', 1)`)
		return err
	})
	require.NoError(t, err)

	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM books`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestRunInTxRollback(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	boom := errors.New("boom")

	err := RunInTx(ctx, conn, nil, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO books (title, author, available_copies) VALUES ('A', 'B', 1)`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// The insert rolled back with the failing step.
	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM books`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestRunInTxRetryNonRetryableError(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	boom := errors.New("boom")

	attempts := 0
	err := RunInTxRetry(ctx, conn, nil, func(ctx context.Context, tx DBTX) error {
		attempts++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
}

func TestRunInTxRetryExhaustsBudget(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)

	attempts := 0
	err := RunInTxRetry(ctx, conn, nil, func(ctx context.Context, tx DBTX) error {
		attempts++
		return errors.New("database is locked")
	})
	assert.ErrorIs(t, err, ErrTxConflict)
	assert.Equal(t, maxAttempts, attempts)
}

func TestIsDuplicate(t *testing.T) {
	conn := dbtest.Open(t)

	_, err := conn.Exec(`INSERT INTO students (first_name, last_name, email) VALUES ('A', 'B', 'x@test.edu')`)
	require.NoError(t, err)
	_, err = conn.Exec(`INSERT INTO students (first_name, last_name, email) VALUES ('C', 'D', 'x@test.edu')`)
	assert.True(t, IsDuplicate(err))

	assert.True(t, IsDuplicate(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}))
	assert.False(t, IsDuplicate(&mysql.MySQLError{Number: 1213, Message: "Deadlock"}))
	assert.False(t, IsDuplicate(nil))
	assert.False(t, IsDuplicate(errors.New("other")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"}))
	assert.True(t, IsRetryable(&mysql.MySQLError{Number: 1205, Message: "Lock wait timeout"}))
	assert.True(t, IsRetryable(errors.New("database is locked")))
	assert.False(t, IsRetryable(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}))
	assert.False(t, IsRetryable(nil))
}

// The duplicate-active-borrow unique key is what the request path leans
// on; make sure the fixture schema actually enforces it, NULLs excluded.
func TestActiveBorrowUniqueness(t *testing.T) {
	conn := dbtest.Open(t)
	student := dbtest.SeedStudent(t, conn, "uq@test.edu")
	book := dbtest.SeedBook(t, conn, "Dune", 1)

	_, err := conn.Exec(
		`INSERT INTO borrows (borrow_ulid, student_id, book_id, status, active) VALUES ('U1', ?, ?, 'PENDING', 1)`,
		student, book)
	require.NoError(t, err)

	_, err = conn.Exec(
		`INSERT INTO borrows (borrow_ulid, student_id, book_id, status, active) VALUES ('U2', ?, ?, 'PENDING', 1)`,
		student, book)
	assert.True(t, IsDuplicate(err))

	// Closed rows carry NULL and never collide.
	for i, ulid := range []string{"U3", "U4"} {
		_, err = conn.Exec(
			`INSERT INTO borrows (borrow_ulid, student_id, book_id, status, active) VALUES (?, ?, ?, 'RETURNED', NULL)`,
			ulid, student, book)
		require.NoError(t, err, "history row %d", i)
	}
}
