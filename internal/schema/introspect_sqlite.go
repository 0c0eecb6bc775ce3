package schema

import (
	"context"
	"strings"

	"github.com/koustreak/tabula/internal/database"
)

// SQLiteIntrospector implements Introspector for SQLite using sqlite_master
// and the table_info / foreign_key_list pragmas.
type SQLiteIntrospector struct {
	db database.DB
}

// NewSQLiteIntrospector creates a new SQLite schema introspector.
func NewSQLiteIntrospector(db database.DB) *SQLiteIntrospector {
	return &SQLiteIntrospector{db: db}
}

// ListTables returns all user tables, skipping SQLite's internal ones.
func (s *SQLiteIntrospector) ListTables(ctx context.Context) ([]string, error) {
	const q = `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table'
		  AND name NOT LIKE 'sqlite_%'
		ORDER BY name`

	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	return scanNames(rows)
}

// Introspect returns column, primary key and foreign key details for a table.
func (s *SQLiteIntrospector) Introspect(ctx context.Context, table string) (*TableMetadata, error) {
	if err := requireTable(ctx, s, table); err != nil {
		return nil, err
	}

	meta := &TableMetadata{Name: table}
	if err := s.columns(ctx, meta); err != nil {
		return nil, err
	}

	fks, err := s.foreignKeys(ctx, table)
	if err != nil {
		return nil, err
	}
	meta.ForeignKeys = fks

	return finish(ctx, s.db, meta)
}

func (s *SQLiteIntrospector) columns(ctx context.Context, meta *TableMetadata) error {
	rows, err := s.db.Query(ctx, "PRAGMA table_info("+database.DialectSQLite.QuoteIdent(meta.Name)+")")
	if err != nil {
		return schemaErr(meta.Name, "cannot read table_info", err)
	}
	defer rows.Close()

	var pks []pkPos
	for rows.Next() {
		var (
			cid      int
			col      ColumnInfo
			notNull  int
			defValue *string
			pk       int
		)
		if err := rows.Scan(&cid, &col.Name, &col.DeclaredType, &notNull, &defValue, &pk); err != nil {
			return schemaErr(meta.Name, "cannot scan table_info", err)
		}
		col.Type = NormalizeType(col.DeclaredType)
		col.Default = defValue
		col.IsPrimaryKey = pk > 0
		// PRIMARY KEY columns are never NULL in practice even though SQLite
		// reports notnull=0 for them.
		col.Nullable = notNull == 0 && !col.IsPrimaryKey
		if pk > 0 {
			pks = append(pks, pkPos{col.Name, pk})
		}
		meta.Columns = append(meta.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return schemaErr(meta.Name, "cannot read table_info", err)
	}

	meta.PrimaryKey = orderedPrimaryKey(pks)

	// A lone INTEGER PRIMARY KEY aliases the rowid and is assigned on insert.
	if len(pks) == 1 {
		for i := range meta.Columns {
			c := &meta.Columns[i]
			if c.Name == pks[0].name && strings.EqualFold(strings.TrimSpace(c.DeclaredType), "INTEGER") {
				c.AutoIncrement = true
			}
		}
	}
	return nil
}

func (s *SQLiteIntrospector) foreignKeys(ctx context.Context, table string) ([]ForeignKeyInfo, error) {
	rows, err := s.db.Query(ctx, "PRAGMA foreign_key_list("+database.DialectSQLite.QuoteIdent(table)+")")
	if err != nil {
		return nil, schemaErr(table, "cannot read foreign_key_list", err)
	}
	defer rows.Close()

	fks := make([]ForeignKeyInfo, 0)
	for rows.Next() {
		var (
			id, seq            int
			refTable, from     string
			to                 *string
			onUpdate, onDelete string
			match              string
		)
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, schemaErr(table, "cannot scan foreign_key_list", err)
		}
		fk := ForeignKeyInfo{Column: from, RefTable: refTable}
		if to != nil {
			fk.RefColumn = *to
		}
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, schemaErr(table, "cannot read foreign_key_list", err)
	}
	return fks, nil
}
