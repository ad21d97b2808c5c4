// Package dbx provides the small database abstractions shared by the local
// store and its repositories: an interface (DBTX) implemented by both *sql.DB
// and *sql.Tx, a transaction helper and classification of driver failures.
package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/assetsync/internal/common"
)

// DBTX is the subset of database/sql used by our repos.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx begins a transaction, runs fn with a transactional handle, and then
// commits on success or rolls back on error/panic. Panics are rethrown.
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    return uploads.NewSQLiteRepository(tx).Update(ctx, req)
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return Unavailable(err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = Unavailable(cerr)
		}
	}()

	err = fn(ctx, tx)
	return err
}

// Unavailable wraps a driver failure so callers can match it with
// common.ErrStoreUnavailable. Domain sentinels and nil pass through untouched.
func Unavailable(err error) error {
	if err == nil || IsDomain(err) {
		return err
	}
	return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
}

// IsDomain reports whether err is one of the sentinel errors repositories
// return on purpose rather than a failure of the database itself.
func IsDomain(err error) bool {
	return errors.Is(err, common.ErrorNotFound) ||
		errors.Is(err, common.ErrStoreUnavailable) ||
		errors.Is(err, common.ErrInvalidTransition) ||
		errors.Is(err, common.ErrUnknownStatus) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
