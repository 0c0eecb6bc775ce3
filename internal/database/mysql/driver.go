// Package mysql provides the MySQL implementation of database.DB on top of
// go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/koustreak/tabula/internal/database"
	"github.com/koustreak/tabula/internal/database/sqldb"
	"github.com/koustreak/tabula/internal/errs"
)

// Driver is a MySQL implementation of database.DB backed by database/sql.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	*sqldb.DB
}

// New opens a MySQL connection pool using the provided Config and returns a Driver.
// It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *database.Config) (*Driver, error) {
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}
	// DATETIME columns come back as time.Time rather than []byte.
	mc.ParseTime = true
	if cfg.ConnectTimeout > 0 {
		mc.Timeout = cfg.ConnectTimeout
	}

	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}

	d := &Driver{DB: sqldb.Wrap(sql.OpenDB(connector), cfg, database.DialectMySQL, mapError)}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := d.Ping(pingCtx); err != nil {
		d.Close()
		return nil, err
	}

	return d, nil
}

// FromSQL wraps an already-open *sql.DB speaking the MySQL protocol.
func FromSQL(db *sql.DB, cfg *database.Config) *Driver {
	return &Driver{DB: sqldb.Wrap(db, cfg, database.DialectMySQL, mapError)}
}

// --- error mapping ---

// mapError translates go-sql-driver/mysql errors into *errs.Error.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		e := errs.Wrap(
			classifyMySQLCode(mysqlErr.Number),
			fmt.Sprintf("%s: %s", msg, mysqlErr.Message),
			err,
		)
		return e
	}

	if errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, sql.ErrConnDone) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}

// classifyMySQLCode maps MySQL error numbers to ErrKind.
func classifyMySQLCode(code uint16) errs.ErrKind {
	switch code {
	case 1044, 1045:
		return errs.ErrKindPermissionDenied
	case 1046, 1049, 1040, 1203:
		return errs.ErrKindConnectionFailed
	case 1146:
		return errs.ErrKindSchema
	case 1205, 1213, 3024:
		return errs.ErrKindTimeout
	case 1062, // duplicate entry
		1451, 1452, // foreign key
		1048, 1364, // not null / no default
		3819,       // check constraint
		1366, 1264: // incorrect value / out of range
		return errs.ErrKindConstraint
	default:
		return errs.ErrKindQueryFailed
	}
}
