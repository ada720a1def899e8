// Package dbtest opens throwaway sqlite databases carrying the library
// schema so store and service tests can run without a MySQL server. The
// schema mirrors schema/library.sql, including the unique keys the
// services rely on.
package dbtest

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE books (
    book_id          INTEGER PRIMARY KEY AUTOINCREMENT,
    title            TEXT NOT NULL,
    author           TEXT NOT NULL,
    genre            TEXT NOT NULL DEFAULT '',
    year_published   INTEGER NOT NULL DEFAULT 0,
    available_copies INTEGER NOT NULL DEFAULT 0,
    CHECK (available_copies >= 0)
);

CREATE TABLE students (
    student_id INTEGER PRIMARY KEY AUTOINCREMENT,
    first_name TEXT NOT NULL,
    last_name  TEXT NOT NULL,
    email      TEXT NOT NULL UNIQUE,
    fine_due   INTEGER NOT NULL DEFAULT 0,
    status     TEXT NOT NULL DEFAULT 'PENDING'
);

CREATE TABLE borrows (
    borrow_id    INTEGER PRIMARY KEY AUTOINCREMENT,
    borrow_ulid  TEXT NOT NULL UNIQUE,
    student_id   INTEGER NOT NULL REFERENCES students (student_id),
    book_id      INTEGER NOT NULL REFERENCES books (book_id),
    status       TEXT NOT NULL,
    issue_date   DATETIME,
    due_date     DATETIME,
    return_date  DATETIME,
    librarian_id TEXT,
    active       INTEGER,
    UNIQUE (student_id, book_id, active)
);

CREATE TABLE fines (
    fine_id    INTEGER PRIMARY KEY AUTOINCREMENT,
    borrow_id  INTEGER NOT NULL UNIQUE REFERENCES borrows (borrow_id),
    student_id INTEGER NOT NULL REFERENCES students (student_id),
    amount     INTEGER NOT NULL,
    reason     TEXT NOT NULL,
    fine_date  DATETIME NOT NULL,
    paid       INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE reservations (
    reservation_id   INTEGER PRIMARY KEY AUTOINCREMENT,
    student_id       INTEGER NOT NULL REFERENCES students (student_id),
    book_id          INTEGER NOT NULL REFERENCES books (book_id),
    reservation_date DATETIME NOT NULL,
    UNIQUE (student_id, book_id)
);

CREATE TABLE accounts (
    id            TEXT PRIMARY KEY,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL,
    student_id    INTEGER REFERENCES students (student_id),
    is_disabled   INTEGER NOT NULL DEFAULT 0
);
`

// Open returns a fresh database seeded with the schema. A single
// connection keeps sqlite's locking out of the way for sequential
// tests; concurrency tests get real contention via the file lock.
func Open(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "library.db")
	conn, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_fk=1&_loc=UTC")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return conn
}

// SeedStudent inserts an approved student and returns its id.
func SeedStudent(t *testing.T, conn *sql.DB, email string) int64 {
	t.Helper()
	res, err := conn.Exec(
		`INSERT INTO students (first_name, last_name, email, fine_due, status) VALUES (?, ?, ?, 0, 'APPROVED')`,
		"Test", "Student", email,
	)
	if err != nil {
		t.Fatalf("seed student: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

// SeedBook inserts a book with the given available copies and returns its id.
func SeedBook(t *testing.T, conn *sql.DB, title string, copies int) int64 {
	t.Helper()
	res, err := conn.Exec(
		`INSERT INTO books (title, author, genre, year_published, available_copies) VALUES (?, ?, ?, ?, ?)`,
		title, "Test Author", "Fiction", 2020, copies,
	)
	if err != nil {
		t.Fatalf("seed book: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}
