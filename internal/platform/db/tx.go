package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	mysql "github.com/go-sql-driver/mysql"
)

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const (
	txTimeout   = 5 * time.Second
	maxAttempts = 3
)

// ErrTxConflict is returned once the retry budget for a contended
// transaction is exhausted.
var ErrTxConflict = errors.New("transaction conflict: retries exhausted")

// RunInTx starts a transaction and runs fn. COMMIT on nil, ROLLBACK on
// error. The whole attempt is bounded by txTimeout.
func RunInTx(ctx context.Context, conn *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) error {
	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx, err := conn.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// RunInTxRetry reruns RunInTx on deadlock / lock-wait / busy errors, up to
// maxAttempts. All other errors surface immediately.
func RunInTxRetry(ctx context.Context, conn *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = RunInTx(ctx, conn, opts, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
	}
	return ErrTxConflict
}

// IsDuplicate reports whether err is a unique-key violation.
// MySQL raises 1062; the sqlite test harness reports the constraint by name.
func IsDuplicate(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsRetryable reports whether err is transient contention worth retrying:
// MySQL deadlock (1213) / lock wait timeout (1205), or sqlite busy/locked.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1213 || me.Number == 1205
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}
