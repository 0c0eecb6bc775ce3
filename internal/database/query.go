package database

import (
	"fmt"
	"strings"

	"github.com/koustreak/tabula/internal/errs"
)

// validOps is the allowlist of comparison operators for WHERE clauses.
// Any operator not in this list is rejected to prevent SQL injection
// through the operator position (which cannot be parameterized).
var validOps = map[string]bool{
	"=":     true,
	"!=":    true,
	"<>":    true,
	"<":     true,
	">":     true,
	"<=":    true,
	">=":    true,
	"LIKE":  true,
	"ILIKE": true,
}

// SortDirection controls the ORDER BY direction.
type SortDirection bool

const (
	Asc  SortDirection = false
	Desc SortDirection = true
)

type condKind int

const (
	condCompare condKind = iota
	condIsNull
	condNotNull
	condAnyLike
)

type condition struct {
	kind    condKind
	column  string
	op      string
	value   any
	columns []string // condAnyLike
}

type orderClause struct {
	column string
	dir    SortDirection
}

// argList hands out dialect placeholders while collecting bound values.
type argList struct {
	dialect Dialect
	args    []any
}

func (a *argList) add(v any) string {
	a.args = append(a.args, v)
	return a.dialect.Placeholder(len(a.args))
}

// conditions is the WHERE clause shared by the SELECT, UPDATE and DELETE builders.
type conditions []condition

func (cs conditions) render(args *argList) (string, error) {
	if len(cs) == 0 {
		return "", nil
	}
	d := args.dialect
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		switch c.kind {
		case condIsNull:
			parts = append(parts, d.QuoteIdent(c.column)+" IS NULL")
		case condNotNull:
			parts = append(parts, d.QuoteIdent(c.column)+" IS NOT NULL")
		case condAnyLike:
			if len(c.columns) == 0 {
				continue
			}
			ors := make([]string, len(c.columns))
			for i, col := range c.columns {
				ors[i] = fmt.Sprintf("LOWER(%s) LIKE %s%s",
					d.TextCast(d.QuoteIdent(col)), args.add(c.value), d.likeEscape())
			}
			parts = append(parts, "("+strings.Join(ors, " OR ")+")")
		default:
			op := strings.ToUpper(c.op)
			if !validOps[op] {
				return "", errs.New(errs.ErrKindInvalidInput,
					fmt.Sprintf("unsupported WHERE operator: %q", c.op))
			}
			if c.value == nil && op == "=" {
				parts = append(parts, d.QuoteIdent(c.column)+" IS NULL")
				continue
			}
			parts = append(parts, fmt.Sprintf("%s %s %s", d.QuoteIdent(c.column), op, args.add(c.value)))
		}
	}
	if len(parts) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(parts, " AND "), nil
}

// SelectBuilder constructs a parameterized SELECT query using a fluent API.
// Values are never interpolated into the SQL string; they are always passed as args.
//
// Usage (Postgres):
//
//	sql, args, err := Select("users", DialectPostgres).
//	    Columns("id", "name", "email").
//	    Where("active", "=", true).
//	    OrderBy("created_at", Desc).
//	    Limit(20).
//	    Offset(0).
//	    Build()
//
// BuildCount renders the matching COUNT(*) from the same conditions, so a
// page and its total can never disagree about the predicate.
type SelectBuilder struct {
	table   string
	dialect Dialect
	columns []string
	where   conditions
	orderBy []orderClause
	limit   *int
	offset  *int
}

// Select starts a new SelectBuilder for the given table and dialect.
func Select(table string, d Dialect) *SelectBuilder {
	return &SelectBuilder{table: table, dialect: d}
}

// Columns restricts the SELECT to the specified columns.
// If not called, SELECT * is used.
func (b *SelectBuilder) Columns(cols ...string) *SelectBuilder {
	b.columns = cols
	return b
}

// Where adds a WHERE condition. op must be one of the allowed comparison
// operators (=, !=, <, >, <=, >=, LIKE, ILIKE). A nil value with "=" renders
// IS NULL. Multiple calls are combined with AND.
func (b *SelectBuilder) Where(column, op string, value any) *SelectBuilder {
	b.where = append(b.where, condition{kind: condCompare, column: column, op: op, value: value})
	return b
}

// WhereNull adds a "column IS NULL" condition.
func (b *SelectBuilder) WhereNull(column string) *SelectBuilder {
	b.where = append(b.where, condition{kind: condIsNull, column: column})
	return b
}

// WhereNotNull adds a "column IS NOT NULL" condition.
func (b *SelectBuilder) WhereNotNull(column string) *SelectBuilder {
	b.where = append(b.where, condition{kind: condNotNull, column: column})
	return b
}

// WhereAnyContains adds a case-insensitive substring match of needle against
// any of the given columns cast to text.
func (b *SelectBuilder) WhereAnyContains(columns []string, needle string) *SelectBuilder {
	pattern := "%" + EscapeLike(strings.ToLower(needle)) + "%"
	b.where = append(b.where, condition{kind: condAnyLike, columns: columns, value: pattern})
	return b
}

// OrderBy appends an ORDER BY clause for the given column and direction.
func (b *SelectBuilder) OrderBy(column string, dir SortDirection) *SelectBuilder {
	b.orderBy = append(b.orderBy, orderClause{column, dir})
	return b
}

// Limit sets the maximum number of rows to return.
func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	b.limit = &n
	return b
}

// Offset sets the number of rows to skip (for pagination).
func (b *SelectBuilder) Offset(n int) *SelectBuilder {
	b.offset = &n
	return b
}

// Build produces the final SQL string and argument slice.
// Returns an error if any WHERE operator is not in the allowlist.
func (b *SelectBuilder) Build() (string, []any, error) {
	d := b.dialect

	// --- column list ---
	cols := "*"
	if len(b.columns) > 0 {
		quoted := make([]string, len(b.columns))
		for i, c := range b.columns {
			quoted[i] = d.QuoteIdent(c)
		}
		cols = strings.Join(quoted, ", ")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(d.QuoteIdent(b.table))

	args := &argList{dialect: d}

	// --- WHERE ---
	where, err := b.where.render(args)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(where)

	// --- ORDER BY ---
	if len(b.orderBy) > 0 {
		parts := make([]string, len(b.orderBy))
		for i, o := range b.orderBy {
			dir := "ASC"
			if o.dir == Desc {
				dir = "DESC"
			}
			parts[i] = fmt.Sprintf("%s %s", d.QuoteIdent(o.column), dir)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}

	// --- LIMIT ---
	if b.limit != nil {
		sb.WriteString(" LIMIT " + args.add(*b.limit))
	}

	// --- OFFSET ---
	if b.offset != nil {
		sb.WriteString(" OFFSET " + args.add(*b.offset))
	}

	return sb.String(), args.args, nil
}

// BuildCount produces SELECT COUNT(*) over the builder's table and WHERE
// conditions, ignoring columns, ordering and pagination.
func (b *SelectBuilder) BuildCount() (string, []any, error) {
	args := &argList{dialect: b.dialect}
	where, err := b.where.render(args)
	if err != nil {
		return "", nil, err
	}
	return "SELECT COUNT(*) FROM " + b.dialect.QuoteIdent(b.table) + where, args.args, nil
}

type assignment struct {
	column string
	value  any
}

// InsertBuilder constructs a parameterized INSERT statement.
type InsertBuilder struct {
	table     string
	dialect   Dialect
	values    []assignment
	returning []string
}

// Insert starts a new InsertBuilder for the given table and dialect.
func Insert(table string, d Dialect) *InsertBuilder {
	return &InsertBuilder{table: table, dialect: d}
}

// Value adds a column/value pair. Columns render in the order they are added.
func (b *InsertBuilder) Value(column string, value any) *InsertBuilder {
	b.values = append(b.values, assignment{column, value})
	return b
}

// Returning requests the given columns back from the insert. It is ignored
// by dialects without RETURNING support.
func (b *InsertBuilder) Returning(cols ...string) *InsertBuilder {
	b.returning = cols
	return b
}

// Build produces the final SQL string and argument slice.
func (b *InsertBuilder) Build() (string, []any, error) {
	d := b.dialect
	args := &argList{dialect: d}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(d.QuoteIdent(b.table))

	switch {
	case len(b.values) == 0 && d == DialectMySQL:
		sb.WriteString(" () VALUES ()")
	case len(b.values) == 0:
		sb.WriteString(" DEFAULT VALUES")
	default:
		cols := make([]string, len(b.values))
		marks := make([]string, len(b.values))
		for i, a := range b.values {
			cols[i] = d.QuoteIdent(a.column)
			marks[i] = args.add(a.value)
		}
		sb.WriteString(" (" + strings.Join(cols, ", ") + ")")
		sb.WriteString(" VALUES (" + strings.Join(marks, ", ") + ")")
	}

	if len(b.returning) > 0 && d.SupportsReturning() {
		quoted := make([]string, len(b.returning))
		for i, c := range b.returning {
			quoted[i] = d.QuoteIdent(c)
		}
		sb.WriteString(" RETURNING " + strings.Join(quoted, ", "))
	}

	return sb.String(), args.args, nil
}

// UpdateBuilder constructs a parameterized UPDATE statement.
type UpdateBuilder struct {
	table   string
	dialect Dialect
	sets    []assignment
	where   conditions
}

// Update starts a new UpdateBuilder for the given table and dialect.
func Update(table string, d Dialect) *UpdateBuilder {
	return &UpdateBuilder{table: table, dialect: d}
}

// Set adds a "column = value" assignment.
func (b *UpdateBuilder) Set(column string, value any) *UpdateBuilder {
	b.sets = append(b.sets, assignment{column, value})
	return b
}

// Where adds a WHERE condition, with the same rules as SelectBuilder.Where.
func (b *UpdateBuilder) Where(column, op string, value any) *UpdateBuilder {
	b.where = append(b.where, condition{kind: condCompare, column: column, op: op, value: value})
	return b
}

// WhereNull adds a "column IS NULL" condition.
func (b *UpdateBuilder) WhereNull(column string) *UpdateBuilder {
	b.where = append(b.where, condition{kind: condIsNull, column: column})
	return b
}

// Build produces the final SQL string and argument slice. An UPDATE without
// assignments or without conditions is rejected.
func (b *UpdateBuilder) Build() (string, []any, error) {
	if len(b.sets) == 0 {
		return "", nil, errs.New(errs.ErrKindInvalidInput, "update has no assignments")
	}
	if len(b.where) == 0 {
		return "", nil, errs.New(errs.ErrKindInvalidInput, "update has no conditions")
	}

	d := b.dialect
	args := &argList{dialect: d}

	sets := make([]string, len(b.sets))
	for i, a := range b.sets {
		sets[i] = d.QuoteIdent(a.column) + " = " + args.add(a.value)
	}

	where, err := b.where.render(args)
	if err != nil {
		return "", nil, err
	}

	return "UPDATE " + d.QuoteIdent(b.table) + " SET " + strings.Join(sets, ", ") + where, args.args, nil
}

// DeleteBuilder constructs a parameterized DELETE statement.
type DeleteBuilder struct {
	table   string
	dialect Dialect
	where   conditions
}

// Delete starts a new DeleteBuilder for the given table and dialect.
func Delete(table string, d Dialect) *DeleteBuilder {
	return &DeleteBuilder{table: table, dialect: d}
}

// Where adds a WHERE condition, with the same rules as SelectBuilder.Where.
func (b *DeleteBuilder) Where(column, op string, value any) *DeleteBuilder {
	b.where = append(b.where, condition{kind: condCompare, column: column, op: op, value: value})
	return b
}

// Build produces the final SQL string and argument slice. A DELETE without
// conditions is rejected.
func (b *DeleteBuilder) Build() (string, []any, error) {
	if len(b.where) == 0 {
		return "", nil, errs.New(errs.ErrKindInvalidInput, "delete has no conditions")
	}

	args := &argList{dialect: b.dialect}
	where, err := b.where.render(args)
	if err != nil {
		return "", nil, err
	}
	return "DELETE FROM " + b.dialect.QuoteIdent(b.table) + where, args.args, nil
}
