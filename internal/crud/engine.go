// Package crud performs generic create/read/update/delete against any table
// the metadata cache knows about.
//
// Table and column names are resolved against cached metadata before they
// are placed in SQL; every value travels as a bound parameter. Semantic
// columns are honoured on every write path: audit timestamps and actors are
// filled in automatically and tables with a deleted_at column are soft
// deleted.
package crud

import (
	"context"
	"database/sql/driver"
	"errors"
	"slices"
	"time"

	"github.com/koustreak/tabula/internal/database"
	"github.com/koustreak/tabula/internal/errs"
	"github.com/koustreak/tabula/internal/schema"
	"github.com/koustreak/tabula/internal/semantics"
)

const (
	DefaultPageSize = 25
	MaxPageSize     = 500

	// TimestampLayout is used for audit timestamps stored as text.
	TimestampLayout = "2006-01-02 15:04:05"
)

// MetadataSource is the read side of the metadata cache.
type MetadataSource interface {
	ListTables() []string
	Get(table string) (*schema.TableMetadata, error)
	GetSemantics(table string) (semantics.ColumnSemantics, error)
}

// Row is one table row keyed by column name.
type Row map[string]any

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the source of audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMaxPageSize caps ListQuery.PageSize.
func WithMaxPageSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxPageSize = n
		}
	}
}

// WithQueryTimeout bounds every operation that reaches the database.
func WithQueryTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// Engine is safe for concurrent use; it holds no per-request state.
type Engine struct {
	db          database.DB
	cache       MetadataSource
	dialect     database.Dialect
	now         func() time.Time
	maxPageSize int
	timeout     time.Duration
}

// New creates an Engine over the target db using cache for structure.
func New(db database.DB, cache MetadataSource, opts ...Option) *Engine {
	e := &Engine{
		db:          db,
		cache:       cache,
		dialect:     db.Dialect(),
		now:         time.Now,
		maxPageSize: MaxPageSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.timeout)
}

// table is a resolved view of one cached table for the duration of a call.
type table struct {
	meta *schema.TableMetadata
	sem  semantics.ColumnSemantics
}

func (e *Engine) resolve(name string) (*table, error) {
	if !slices.Contains(e.cache.ListTables(), name) {
		return nil, errs.UnknownTable(name)
	}
	meta, err := e.cache.Get(name)
	if err != nil {
		return nil, err
	}
	sem, err := e.cache.GetSemantics(name)
	if err != nil {
		return nil, err
	}
	return &table{meta: meta, sem: sem}, nil
}

func (t *table) name() string { return t.meta.Name }

// column returns the cached column named name or an unknown-column error.
func (t *table) column(name string) (schema.ColumnInfo, error) {
	c, ok := t.meta.Column(name)
	if !ok {
		return schema.ColumnInfo{}, errs.UnknownColumn(t.meta.Name, name)
	}
	return c, nil
}

func (t *table) pkColumn() schema.ColumnInfo {
	c, _ := t.meta.Column(t.meta.PrimaryKeyColumn())
	return c
}

// callerKeyed reports whether the database assigns no key of its own, so a
// new row is only addressable when the caller supplies one.
func (t *table) callerKeyed() bool {
	return !t.pkColumn().HasDefault()
}

func (t *table) isPrimaryKey(name string) bool {
	return slices.Contains(t.meta.PrimaryKey, name)
}

// softDeleteColumn is the single authority on whether rows of t are soft
// deleted, and through which column.
func (t *table) softDeleteColumn() (string, bool) {
	return t.sem.SoftDeleteColumn()
}

// liveRows restricts b to rows that are not soft deleted, unless
// includeDeleted is set or the table has no deleted_at column.
func (t *table) liveRows(b *database.SelectBuilder, includeDeleted bool) {
	if includeDeleted {
		return
	}
	if col, ok := t.softDeleteColumn(); ok {
		b.WhereNull(col)
	}
}

// pkValue coerces a caller-supplied key to the primary key column's type.
func (t *table) pkValue(pk any) (any, error) {
	if pk == nil {
		return nil, errs.Validation(t.name(), t.meta.PrimaryKeyColumn(), "primary key value is required")
	}
	return coerce(t.name(), t.pkColumn(), pk)
}

// timestamp renders the engine clock for col. SQLite and non-temporal
// columns get text; temporal columns elsewhere get time.Time.
func (e *Engine) timestamp(col schema.ColumnInfo) any {
	now := e.now().UTC()
	if e.dialect == database.DialectSQLite || !col.IsTemporal() {
		return now.Format(TimestampLayout)
	}
	return now.Truncate(time.Second)
}

// normalizeRow converts driver values into plain JSON-friendly values.
func normalizeRow(meta *schema.TableMetadata, raw map[string]any) Row {
	out := make(Row, len(raw))
	for k, v := range raw {
		col, _ := meta.Column(k)
		out[k] = normalizeValue(col, v)
	}
	return out
}

func normalizeValue(col schema.ColumnInfo, v any) any {
	switch x := v.(type) {
	case []byte:
		if col.Type == schema.TypeBlob {
			return x
		}
		return string(x)
	case driver.Valuer:
		if dv, err := x.Value(); err == nil {
			return dv
		}
	}
	return v
}

// annotate fills in the table on driver errors that did not name one.
func annotate(err error, tableName string) error {
	var e *errs.Error
	if errors.As(err, &e) && e.Table == "" {
		e.Table = tableName
	}
	return err
}
