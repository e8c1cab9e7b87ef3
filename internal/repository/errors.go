// Package repository contains the hand-written SQL data access layer.
//
// The sentinel values below let higher layers distinguish failure
// scenarios without inspecting driver errors. Every lookup is scoped by
// owner, so a row that exists but belongs to someone else is reported
// exactly like a missing row: ErrNotFound.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when no row matches the id and owner.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write collides with a unique key, such
// as renaming a tag to a name the owner already uses.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned by UserRepo.Create on a duplicate email.
var ErrEmailExists = errors.New("email already exists")

// MySQL server error numbers the repositories react to.
const (
	errDupEntry     = 1062
	errLockWaitTime = 1205
	errDeadlock     = 1213
)

// IsDuplicateKey reports whether err is a unique constraint violation.
func IsDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == errDupEntry
}

// IsRetryable reports whether the transaction that produced err can be
// retried from scratch (deadlock victim or lock wait timeout).
func IsRetryable(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	return me.Number == errDeadlock || me.Number == errLockWaitTime
}

// DBTX is satisfied by both *sql.DB and *sql.Tx, so every repository can
// run standalone or inside a unit of work.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// placeholders returns "?,?,?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, 2*n-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}

func uint64Args(ids []uint64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
