package schema

import (
	"context"

	"github.com/koustreak/tabula/internal/database"
)

// PgIntrospector implements Introspector for PostgreSQL using information_schema.
// It is scoped to the connection's current schema.
type PgIntrospector struct {
	db database.DB
}

// NewPgIntrospector creates a new Postgres schema introspector.
func NewPgIntrospector(db database.DB) *PgIntrospector {
	return &PgIntrospector{db: db}
}

// ListTables returns all user-defined table names in the current schema.
func (p *PgIntrospector) ListTables(ctx context.Context) ([]string, error) {
	const q = `
		SELECT table_name::text
		FROM information_schema.tables
		WHERE table_schema = current_schema()
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	rows, err := p.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	return scanNames(rows)
}

// Introspect returns column, primary key and foreign key details for a table.
func (p *PgIntrospector) Introspect(ctx context.Context, table string) (*TableMetadata, error) {
	if err := requireTable(ctx, p, table); err != nil {
		return nil, err
	}

	const q = `
		SELECT
			c.column_name::text,
			CASE WHEN c.data_type IN ('USER-DEFINED', 'ARRAY')
			     THEN c.udt_name::text ELSE c.data_type::text END,
			c.is_nullable = 'YES'                                   AS is_nullable,
			c.column_default::text,
			COALESCE(c.column_default LIKE 'nextval(%', false)
			  OR c.is_identity = 'YES'                              AS auto_increment,
			pk.ordinal_position
		FROM information_schema.columns c

		-- Primary key position
		LEFT JOIN (
			SELECT kcu.column_name, kcu.ordinal_position
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name
				AND tc.table_schema = kcu.table_schema
			WHERE tc.constraint_type = 'PRIMARY KEY'
			  AND tc.table_schema = current_schema()
			  AND tc.table_name   = $1
		) pk ON pk.column_name = c.column_name

		WHERE c.table_schema = current_schema() AND c.table_name = $1
		ORDER BY c.ordinal_position`

	rows, err := p.db.Query(ctx, q, table)
	if err != nil {
		return nil, schemaErr(table, "cannot read columns", err)
	}
	defer rows.Close()

	meta := &TableMetadata{Name: table}
	var pks []pkPos
	for rows.Next() {
		var (
			col   ColumnInfo
			pkOrd *int32
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

	fks, err := p.foreignKeys(ctx, table)
	if err != nil {
		return nil, err
	}
	meta.ForeignKeys = fks

	return finish(ctx, p.db, meta)
}

func (p *PgIntrospector) foreignKeys(ctx context.Context, table string) ([]ForeignKeyInfo, error) {
	const q = `
		SELECT
			kcu.column_name::text  AS from_column,
			ccu.table_name::text   AS to_table,
			ccu.column_name::text  AS to_column
		FROM information_schema.table_constraints AS tc
		JOIN information_schema.key_column_usage AS kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage AS ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema = current_schema()
		  AND tc.table_name   = $1
		ORDER BY tc.constraint_name, kcu.ordinal_position`

	rows, err := p.db.Query(ctx, q, table)
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
