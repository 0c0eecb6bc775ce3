// Package sqlite provides the SQLite implementation of database.DB on top of
// mattn/go-sqlite3.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/koustreak/tabula/internal/database"
	"github.com/koustreak/tabula/internal/database/sqldb"
	"github.com/koustreak/tabula/internal/errs"
)

// Driver is a SQLite implementation of database.DB backed by database/sql.
type Driver struct {
	*sqldb.DB
}

// New opens the SQLite database at cfg.DSN and returns a Driver.
// Foreign key enforcement and a busy timeout are switched on unless the DSN
// already sets them.
func New(ctx context.Context, cfg *database.Config) (*Driver, error) {
	db, err := sql.Open("sqlite3", withDefaults(cfg.DSN, cfg))
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}

	d := &Driver{DB: sqldb.Wrap(db, cfg, database.DialectSQLite, mapError)}

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	if err := d.Ping(pingCtx); err != nil {
		d.Close()
		return nil, err
	}

	return d, nil
}

// withDefaults appends driver options to dsn.
func withDefaults(dsn string, cfg *database.Config) string {
	var opts []string
	if !strings.Contains(dsn, "_foreign_keys") && !strings.Contains(dsn, "_fk") {
		opts = append(opts, "_foreign_keys=on")
	}
	if !strings.Contains(dsn, "_busy_timeout") && !strings.Contains(dsn, "_timeout") {
		ms := cfg.QueryTimeout.Milliseconds()
		if ms <= 0 {
			ms = 5000
		}
		opts = append(opts, fmt.Sprintf("_busy_timeout=%d", ms))
	}
	if len(opts) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(opts, "&")
}

// --- error mapping ---

// mapError translates go-sqlite3 errors into *errs.Error.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, "record not found", err)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		e := errs.Wrap(classifyCode(sqliteErr), fmt.Sprintf("%s: %s", msg, sqliteErr.Error()), err)
		if e.Kind == errs.ErrKindConstraint {
			e.Constraint, e.Table, e.Column = parseConstraint(sqliteErr.Error())
		}
		return e
	}

	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}

func classifyCode(e sqlite3.Error) errs.ErrKind {
	switch e.Code {
	case sqlite3.ErrConstraint, sqlite3.ErrMismatch, sqlite3.ErrTooBig:
		return errs.ErrKindConstraint
	case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrInterrupt:
		return errs.ErrKindTimeout
	case sqlite3.ErrCantOpen, sqlite3.ErrNotADB, sqlite3.ErrCorrupt:
		return errs.ErrKindConnectionFailed
	case sqlite3.ErrPerm, sqlite3.ErrAuth, sqlite3.ErrReadonly:
		return errs.ErrKindPermissionDenied
	}
	if strings.Contains(e.Error(), "no such table") {
		return errs.ErrKindSchema
	}
	return errs.ErrKindQueryFailed
}

// parseConstraint pulls the violated target out of messages such as
// "UNIQUE constraint failed: tasks.title" or "CHECK constraint failed: positive".
func parseConstraint(msg string) (constraint, table, column string) {
	const marker = "constraint failed: "
	i := strings.Index(msg, marker)
	if i < 0 {
		return "", "", ""
	}
	constraint = strings.TrimSpace(msg[i+len(marker):])
	// Composite uniques list "t.a, t.b"; the first column is enough to anchor a form error.
	first, _, _ := strings.Cut(constraint, ",")
	if t, c, ok := strings.Cut(first, "."); ok {
		table, column = t, strings.TrimSpace(c)
	}
	return constraint, table, column
}
