package schema

import (
	"context"

	"github.com/koustreak/tabula/internal/database"
)

// MySQLIntrospector implements Introspector for MySQL using information_schema.
// It is scoped to the connection's default database.
type MySQLIntrospector struct {
	db database.DB
}

// NewMySQLIntrospector creates a new MySQL schema introspector.
func NewMySQLIntrospector(db database.DB) *MySQLIntrospector {
	return &MySQLIntrospector{db: db}
}

// ListTables returns all base tables of the current database.
func (m *MySQLIntrospector) ListTables(ctx context.Context) ([]string, error) {
	const q = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	rows, err := m.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	return scanNames(rows)
}

// Introspect returns column, primary key and foreign key details for a table.
func (m *MySQLIntrospector) Introspect(ctx context.Context, table string) (*TableMetadata, error) {
	if err := requireTable(ctx, m, table); err != nil {
		return nil, err
	}

	const q = `
		SELECT
			c.column_name,
			c.column_type,
			c.is_nullable = 'YES'                  AS is_nullable,
			c.column_default,
			c.extra LIKE '%auto_increment%'        AS auto_increment,
			k.ordinal_position
		FROM information_schema.columns c
		LEFT JOIN information_schema.key_column_usage k
			ON k.table_schema = c.table_schema
			AND k.table_name = c.table_name
			AND k.column_name = c.column_name
			AND k.constraint_name = 'PRIMARY'
		WHERE c.table_schema = DATABASE()
		  AND c.table_name   = ?
		ORDER BY c.ordinal_position`

	rows, err := m.db.Query(ctx, q, table)
	if err != nil {
		return nil, schemaErr(table, "cannot read columns", err)
	}
	defer rows.Close()

	meta := &TableMetadata{Name: table}
	var pks []pkPos
	for rows.Next() {
		var (
			col   ColumnInfo
			pkOrd *int64
		)
		if err := rows.Scan(&col.Name, &col.DeclaredType, &col.Nullable, &col.Default, &col.AutoIncrement, &pkOrd); err != nil {
			return nil, schemaErr(table, "cannot scan column", err)
		}
		col.Type = NormalizeType(col.DeclaredType)
		if pkOrd != nil {
			col.IsPrimaryKey = true
			pks = append(pks, pkPos{col.Name, int(*pkOrd)})
		}
		meta.Columns = append(meta.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, schemaErr(table, "cannot read columns", err)
	}
	meta.PrimaryKey = orderedPrimaryKey(pks)

	fks, err := m.foreignKeys(ctx, table)
	if err != nil {
		return nil, err
	}
	meta.ForeignKeys = fks

	return finish(ctx, m.db, meta)
}

func (m *MySQLIntrospector) foreignKeys(ctx context.Context, table string) ([]ForeignKeyInfo, error) {
	const q = `
		SELECT
			column_name,
			referenced_table_name,
			referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE()
		  AND table_name   = ?
		  AND referenced_table_name IS NOT NULL
		ORDER BY constraint_name, ordinal_position`

	rows, err := m.db.Query(ctx, q, table)
	if err != nil {
		return nil, schemaErr(table, "cannot read foreign keys", err)
	}
	defer rows.Close()

	fks := make([]ForeignKeyInfo, 0)
	for rows.Next() {
		var fk ForeignKeyInfo
		if err := rows.Scan(&fk.Column, &fk.RefTable, &fk.RefColumn); err != nil {
			return nil, schemaErr(table, "cannot scan foreign key", err)
		}
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, schemaErr(table, "cannot read foreign keys", err)
	}
	return fks, nil
}
