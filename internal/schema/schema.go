// Package schema reads table structure from a live target database.
//
// One Introspector exists per dialect. All of them report tables in
// alphabetical order, normalize declared column types and designate the
// first column as primary key when a table declares none.
package schema

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/koustreak/tabula/internal/database"
	"github.com/koustreak/tabula/internal/errs"
)

// Introspector is the interface for reading a database catalog.
type Introspector interface {
	// ListTables returns all user tables, sorted by name.
	ListTables(ctx context.Context) ([]string, error)

	// Introspect returns the full metadata of one table, including a live
	// row count. A table that does not exist is an errs.ErrKindSchema error.
	Introspect(ctx context.Context, table string) (*TableMetadata, error)
}

// New returns the Introspector matching db's dialect.
func New(db database.DB) (Introspector, error) {
	switch db.Dialect() {
	case database.DialectSQLite:
		return NewSQLiteIntrospector(db), nil
	case database.DialectPostgres:
		return NewPgIntrospector(db), nil
	case database.DialectMySQL:
		return NewMySQLIntrospector(db), nil
	default:
		return nil, errs.Newf(errs.ErrKindInvalidInput, "no introspector for dialect %s", db.Dialect())
	}
}

// now is swapped in tests.
var now = func() time.Time { return time.Now().UTC() }

func schemaErr(table, msg string, err error) error {
	e := errs.Wrap(errs.ErrKindSchema, fmt.Sprintf("%s for table %q", msg, table), err)
	e.Table = table
	return e
}

// requireTable fails with a schema error unless table is one of the names
// reported by the catalog. Only names that pass are ever interpolated.
func requireTable(ctx context.Context, in Introspector, table string) error {
	tables, err := in.ListTables(ctx)
	if err != nil {
		return schemaErr(table, "cannot list tables", err)
	}
	if !slices.Contains(tables, table) {
		e := errs.Newf(errs.ErrKindSchema, "table %q does not exist", table)
		e.Table = table
		return e
	}
	return nil
}

// countRows runs a full COUNT(*) over the table.
func countRows(ctx context.Context, db database.DB, table string) (int64, error) {
	q, args, err := database.Select(table, db.Dialect()).BuildCount()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := db.QueryRow(ctx, q, args...).Scan(&n); err != nil {
		return 0, schemaErr(table, "cannot count rows", err)
	}
	return n, nil
}

// scanNames collects a single text column from rows.
func scanNames(rows database.Rows) ([]string, error) {
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// finish applies the rules every dialect shares.
func finish(ctx context.Context, db database.DB, meta *TableMetadata) (*TableMetadata, error) {
	if len(meta.Columns) == 0 {
		return nil, schemaErr(meta.Name, "no columns reported", nil)
	}
	meta.applyPrimaryKeyFallback()
	if meta.ForeignKeys == nil {
		meta.ForeignKeys = []ForeignKeyInfo{}
	}

	n, err := countRows(ctx, db, meta.Name)
	if err != nil {
		return nil, err
	}
	meta.RowCount = n
	meta.RefreshedAt = now()
	return meta, nil
}

// pkPos is a primary key column and its 1-based position in the key.
type pkPos struct {
	name string
	pos  int
}

func orderedPrimaryKey(pks []pkPos) []string {
	slices.SortFunc(pks, func(a, b pkPos) int { return a.pos - b.pos })
	out := make([]string, 0, len(pks))
	for _, p := range pks {
		out = append(out, p.name)
	}
	return out
}
