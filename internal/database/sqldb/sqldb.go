// Package sqldb adapts a database/sql pool to the database.DB contract.
// The SQLite and MySQL drivers both sit on top of it and only contribute
// their connection setup and error classification.
package sqldb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/koustreak/tabula/internal/database"
	"github.com/koustreak/tabula/internal/errs"
)

// ErrorMapper translates a driver-native error into *errs.Error.
// It must return nil for a nil err.
type ErrorMapper func(err error, msg string) error

// DB is a database.DB backed by *sql.DB.
// It is safe for concurrent use by multiple goroutines.
type DB struct {
	db      *sql.DB
	dialect database.Dialect
	mapErr  ErrorMapper
}

// Wrap applies the pool settings from cfg to db and returns the adapter.
func Wrap(db *sql.DB, cfg *database.Config, dialect database.Dialect, mapErr ErrorMapper) *DB {
	db.SetMaxOpenConns(int(cfg.MaxConns))
	db.SetMaxIdleConns(int(cfg.MinConns))
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)
	return &DB{db: db, dialect: dialect, mapErr: mapErr}
}

// Dialect reports the SQL flavour of the wrapped pool.
func (d *DB) Dialect() database.Dialect { return d.dialect }

// Ping verifies the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.mapErr(d.db.PingContext(ctx), "ping failed")
}

// Close releases the pool.
func (d *DB) Close() {
	_ = d.db.Close()
}

// SQLDB returns the underlying *sql.DB (for advanced use).
func (d *DB) SQLDB() *sql.DB {
	return d.db
}

func (d *DB) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	return queryOn(ctx, d.db, d.mapErr, query, args)
}

func (d *DB) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return &row{row: d.db.QueryRowContext(ctx, query, args...), mapErr: d.mapErr}
}

func (d *DB) Exec(ctx context.Context, query string, args ...any) (database.Result, error) {
	return execOn(ctx, d.db, d.mapErr, query, args)
}

// Begin starts a transaction.
func (d *DB) Begin(ctx context.Context) (database.Tx, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, d.mapErr(err, "begin failed")
	}
	return &Tx{tx: tx, mapErr: d.mapErr}, nil
}

// Tx wraps *sql.Tx.
type Tx struct {
	tx     *sql.Tx
	mapErr ErrorMapper
}

func (t *Tx) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	return queryOn(ctx, t.tx, t.mapErr, query, args)
}

func (t *Tx) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return &row{row: t.tx.QueryRowContext(ctx, query, args...), mapErr: t.mapErr}
}

func (t *Tx) Exec(ctx context.Context, query string, args ...any) (database.Result, error) {
	return execOn(ctx, t.tx, t.mapErr, query, args)
}

func (t *Tx) Commit(_ context.Context) error {
	return t.mapErr(t.tx.Commit(), "commit failed")
}

func (t *Tx) Rollback(_ context.Context) error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return t.mapErr(err, "rollback failed")
}

// --- shared helpers ---

type execQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func queryOn(ctx context.Context, q execQuerier, mapErr ErrorMapper, query string, args []any) (database.Rows, error) {
	r, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err, "query failed")
	}
	return &rows{rows: r, mapErr: mapErr}, nil
}

func execOn(ctx context.Context, q execQuerier, mapErr ErrorMapper, query string, args []any) (database.Result, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return database.Result{}, mapErr(err, "exec failed")
	}
	var out database.Result
	if out.RowsAffected, err = res.RowsAffected(); err != nil {
		return database.Result{}, mapErr(err, "rows affected unavailable")
	}
	// LastInsertId is unsupported by some drivers; zero is fine there.
	out.LastInsertID, _ = res.LastInsertId()
	return out, nil
}

// --- sql type wrappers ---

type rows struct {
	rows   *sql.Rows
	mapErr ErrorMapper
}

func (r *rows) Next() bool                 { return r.rows.Next() }
func (r *rows) Scan(dest ...any) error     { return r.mapErr(r.rows.Scan(dest...), "scan failed") }
func (r *rows) Columns() ([]string, error) { return r.rows.Columns() }
func (r *rows) Close()                     { _ = r.rows.Close() }
func (r *rows) Err() error                 { return r.mapErr(r.rows.Err(), "row iteration failed") }

type row struct {
	row    *sql.Row
	mapErr ErrorMapper
}

func (r *row) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, "record not found", err)
	}
	return r.mapErr(err, "scan failed")
}
