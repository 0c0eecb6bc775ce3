package database

import "context"

// Querier is the statement surface shared by a pooled connection and a
// transaction. Everything above the drivers talks to these interfaces and
// never imports the sqlite, postgres or mysql packages directly.
type Querier interface {
	// Query executes a SQL statement that returns multiple rows.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// QueryRow executes a SQL statement that returns at most one row.
	// Errors are deferred to Row.Scan; a missing row surfaces as errs.ErrKindNotFound.
	QueryRow(ctx context.Context, sql string, args ...any) Row

	// Exec executes a statement that returns no rows.
	Exec(ctx context.Context, sql string, args ...any) (Result, error)
}

// DB is the central contract for a target database connection pool.
type DB interface {
	Querier

	// Dialect reports the SQL flavour the builders must emit for this DB.
	Dialect() Dialect

	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Begin starts a transaction. The caller must end it with Commit or Rollback.
	Begin(ctx context.Context) (Tx, error)

	// Close releases all resources held by the connection pool.
	Close()
}

// Tx is a database transaction.
type Tx interface {
	Querier

	Commit(ctx context.Context) error

	// Rollback aborts the transaction. Calling it after Commit is a no-op.
	Rollback(ctx context.Context) error
}

// Result summarises the effect of an Exec.
type Result struct {
	RowsAffected int64

	// LastInsertID is only reported by drivers that support it (SQLite, MySQL).
	LastInsertID int64
}

// Rows is an abstraction over a database result set.
// Callers must always call Close() when done, even on error.
type Rows interface {
	// Next advances to the next row.
	// Returns false when no more rows exist or on error.
	Next() bool

	// Scan copies the current row's columns into the provided destinations.
	Scan(dest ...any) error

	// Columns returns the column names of the result set.
	Columns() ([]string, error)

	// Close releases resources held by the result set.
	Close()

	// Err returns any error encountered during iteration.
	Err() error
}

// Row is an abstraction over a single database row.
type Row interface {
	Scan(dest ...any) error
}

// WithTx runs fn inside a transaction on db. The transaction is committed
// when fn returns nil and rolled back on every other exit path, panics included.
func WithTx(ctx context.Context, db DB, fn func(tx Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
