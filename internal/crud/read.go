package crud

import (
	"context"
	"fmt"
	"sort"

	"github.com/koustreak/tabula/internal/database"
	"github.com/koustreak/tabula/internal/errs"
	"github.com/koustreak/tabula/internal/schema"
)

// ListQuery selects a page of rows. Zero Page and PageSize mean the first
// page of DefaultPageSize rows.
type ListQuery struct {
	// Filters are equality predicates; a nil value matches NULL.
	Filters        map[string]any
	Page           int
	PageSize       int
	IncludeDeleted bool

	// Sort names the ordering column; empty orders by primary key.
	// Desc reverses either ordering.
	Sort string
	Desc bool

	// Search is a case-insensitive substring matched against every
	// non-blob column.
	Search string
}

// Page is one slice of a listing plus the size of the whole filtered set.
type Page struct {
	Rows     []Row `json:"rows"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

// ListRows returns the requested page of tableName. Rows soft deleted
// through a deleted_at column are hidden unless q.IncludeDeleted is set.
func (e *Engine) ListRows(ctx context.Context, tableName string, q ListQuery) (*Page, error) {
	t, err := e.resolve(tableName)
	if err != nil {
		return nil, err
	}

	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = min(DefaultPageSize, e.maxPageSize)
	}
	if q.Page < 1 {
		return nil, errs.Validation(tableName, "", "page must be at least 1")
	}
	if q.PageSize < 1 || q.PageSize > e.maxPageSize {
		return nil, errs.Validation(tableName, "", fmt.Sprintf("page size must be between 1 and %d", e.maxPageSize))
	}

	b, err := e.filtered(t, q)
	if err != nil {
		return nil, err
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	countSQL, countArgs, err := b.BuildCount()
	if err != nil {
		return nil, err
	}
	var total int64
	if err := e.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, annotate(err, tableName)
	}

	pk := t.meta.PrimaryKeyColumn()
	dir := database.Asc
	if q.Desc {
		dir = database.Desc
	}
	switch {
	case q.Sort == "":
		b.OrderBy(pk, dir)
	default:
		if _, err := t.column(q.Sort); err != nil {
			return nil, err
		}
		b.OrderBy(q.Sort, dir)
		if q.Sort != pk {
			b.OrderBy(pk, database.Asc)
		}
	}
	b.Limit(q.PageSize).Offset((q.Page - 1) * q.PageSize)

	rowsSQL, rowsArgs, err := b.Build()
	if err != nil {
		return nil, err
	}
	rows, err := e.db.Query(ctx, rowsSQL, rowsArgs...)
	if err != nil {
		return nil, annotate(err, tableName)
	}
	raw, err := database.ScanRows(rows)
	if err != nil {
		return nil, annotate(err, tableName)
	}

	page := &Page{Rows: make([]Row, len(raw)), Total: total, Page: q.Page, PageSize: q.PageSize}
	for i, r := range raw {
		page.Rows[i] = normalizeRow(t.meta, r)
	}
	return page, nil
}

// filtered builds the predicate shared by the row and count queries.
func (e *Engine) filtered(t *table, q ListQuery) (*database.SelectBuilder, error) {
	b := database.Select(t.name(), e.dialect).Columns(t.meta.ColumnNames()...)

	names := make([]string, 0, len(q.Filters))
	for name := range q.Filters {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		col, err := t.column(name)
		if err != nil {
			return nil, err
		}
		v, err := coerce(t.name(), col, q.Filters[name])
		if err != nil {
			return nil, err
		}
		if v == nil {
			b.WhereNull(name)
			continue
		}
		b.Where(name, "=", v)
	}

	t.liveRows(b, q.IncludeDeleted)

	if q.Search != "" {
		var cols []string
		for _, c := range t.meta.Columns {
			if c.Type != schema.TypeBlob {
				cols = append(cols, c.Name)
			}
		}
		b.WhereAnyContains(cols, q.Search)
	}
	return b, nil
}

// GetRow fetches one row by primary key. Soft-deleted rows are returned too.
func (e *Engine) GetRow(ctx context.Context, tableName string, pk any) (Row, error) {
	t, err := e.resolve(tableName)
	if err != nil {
		return nil, err
	}
	pkv, err := t.pkValue(pk)
	if err != nil {
		return nil, err
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	return e.fetch(ctx, e.db, t, pkv)
}

// fetch reads the row with primary key pkv through q.
func (e *Engine) fetch(ctx context.Context, q database.Querier, t *table, pkv any) (Row, error) {
	cols := t.meta.ColumnNames()
	sqlText, args, err := database.Select(t.name(), e.dialect).
		Columns(cols...).
		Where(t.meta.PrimaryKeyColumn(), "=", pkv).
		Limit(1).
		Build()
	if err != nil {
		return nil, err
	}

	raw, err := database.ScanRow(q.QueryRow(ctx, sqlText, args...), cols)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil, errs.NotFound(t.name(), pkv)
		}
		return nil, annotate(err, t.name())
	}
	return normalizeRow(t.meta, raw), nil
}

// exists reports whether a row with primary key pkv is present, deleted or not.
func (e *Engine) exists(ctx context.Context, q database.Querier, t *table, pkv any) (bool, error) {
	pk := t.meta.PrimaryKeyColumn()
	sqlText, args, err := database.Select(t.name(), e.dialect).
		Columns(pk).
		Where(pk, "=", pkv).
		Limit(1).
		Build()
	if err != nil {
		return false, err
	}

	var found any
	if err := q.QueryRow(ctx, sqlText, args...).Scan(&found); err != nil {
		if errs.IsNotFound(err) {
			return false, nil
		}
		return false, annotate(err, t.name())
	}
	return true, nil
}
