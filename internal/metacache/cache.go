// Package metacache keeps introspected table metadata and column semantics
// for the current target database.
//
// Writers persist to the system store first and then publish a new
// immutable snapshot with a single pointer swap, so readers see either the
// previous state or the next one and never a half-written entry. Nothing is
// populated lazily: a table that was never refreshed is a cache miss.
package metacache

import (
	"context"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/koustreak/tabula/internal/errs"
	"github.com/koustreak/tabula/internal/schema"
	"github.com/koustreak/tabula/internal/semantics"
)

// snapshot is never mutated after it is published.
type snapshot struct {
	entries map[string]Entry
	tables  []string
}

func newSnapshot(entries map[string]Entry) *snapshot {
	tables := make([]string, 0, len(entries))
	for name := range entries {
		tables = append(tables, name)
	}
	sort.Strings(tables)
	return &snapshot{entries: entries, tables: tables}
}

// with returns a copy of s where table maps to e.
func (s *snapshot) with(table string, e Entry) *snapshot {
	next := make(map[string]Entry, len(s.entries)+1)
	for k, v := range s.entries {
		next[k] = v
	}
	next[table] = e
	return newSnapshot(next)
}

// without returns a copy of s lacking table.
func (s *snapshot) without(table string) *snapshot {
	next := make(map[string]Entry, len(s.entries))
	for k, v := range s.entries {
		if k != table {
			next[k] = v
		}
	}
	return newSnapshot(next)
}

// Option configures a Cache.
type Option func(*Cache)

// WithDetector replaces the semantic classifier applied on refresh.
func WithDetector(fn func(*schema.TableMetadata) semantics.ColumnSemantics) Option {
	return func(c *Cache) { c.detect = fn }
}

// Cache is the per-session metadata cache. It is safe for concurrent use.
type Cache struct {
	target schema.Introspector
	store  *Store
	detect func(*schema.TableMetadata) semantics.ColumnSemantics

	mu   sync.Mutex // serializes writers
	snap atomic.Pointer[snapshot]
}

// New creates an empty cache over target, persisting to store.
func New(target schema.Introspector, store *Store, opts ...Option) *Cache {
	c := &Cache{
		target: target,
		store:  store,
		detect: semantics.ScanTable,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.snap.Store(newSnapshot(map[string]Entry{}))
	return c
}

// Load publishes whatever the system store holds. It does not touch the target.
func (c *Cache) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.store.LoadAll(ctx)
	if err != nil {
		return err
	}
	c.snap.Store(newSnapshot(entries))
	return nil
}

// Refresh re-introspects one table. When the table no longer exists in the
// target its entry is dropped and the schema error is returned.
func (c *Cache) Refresh(ctx context.Context, table string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	meta, err := c.target.Introspect(ctx, table)
	if err != nil {
		if errs.IsSchema(err) && c.tableDropped(ctx, table) {
			if derr := c.store.DeleteEntry(ctx, table); derr != nil {
				return derr
			}
			c.snap.Store(c.snap.Load().without(table))
		}
		return err
	}

	e := Entry{Meta: meta, Semantics: c.detect(meta)}
	if err := c.store.SaveEntry(ctx, e); err != nil {
		return err
	}
	c.snap.Store(c.snap.Load().with(table, e))
	return nil
}

// tableDropped reports whether the target positively lacks table. A failing
// catalog read is not taken as evidence of a drop.
func (c *Cache) tableDropped(ctx context.Context, table string) bool {
	tables, err := c.target.ListTables(ctx)
	return err == nil && !slices.Contains(tables, table)
}

// RefreshAll re-introspects every table of the target and replaces the
// whole cache. On any failure the previous state is kept.
func (c *Cache) RefreshAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tables, err := c.target.ListTables(ctx)
	if err != nil {
		return errs.Wrap(errs.ErrKindSchema, "cannot list target tables", err)
	}

	entries := make(map[string]Entry, len(tables))
	list := make([]Entry, 0, len(tables))
	for _, t := range tables {
		meta, err := c.target.Introspect(ctx, t)
		if err != nil {
			return err
		}
		e := Entry{Meta: meta, Semantics: c.detect(meta)}
		entries[t] = e
		list = append(list, e)
	}

	if err := c.store.ReplaceAll(ctx, list); err != nil {
		return err
	}
	c.snap.Store(newSnapshot(entries))
	return nil
}

// InvalidateAll discards every entry, persisted and published.
func (c *Cache) InvalidateAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Clear(ctx); err != nil {
		return err
	}
	c.snap.Store(newSnapshot(map[string]Entry{}))
	return nil
}

// Get returns a copy of the cached metadata of table.
func (c *Cache) Get(table string) (*schema.TableMetadata, error) {
	e, ok := c.snap.Load().entries[table]
	if !ok {
		return nil, errs.CacheMiss(table)
	}
	return e.Meta.Clone(), nil
}

// GetSemantics returns a copy of the cached column semantics of table.
func (c *Cache) GetSemantics(table string) (semantics.ColumnSemantics, error) {
	e, ok := c.snap.Load().entries[table]
	if !ok {
		return nil, errs.CacheMiss(table)
	}
	return e.Semantics.Clone(), nil
}

// Entry returns copies of both halves of a table's cached state.
func (c *Cache) Entry(table string) (Entry, error) {
	e, ok := c.snap.Load().entries[table]
	if !ok {
		return Entry{}, errs.CacheMiss(table)
	}
	return e.clone(), nil
}

// ListTables returns the cached table names, sorted.
func (c *Cache) ListTables() []string {
	return slices.Clone(c.snap.Load().tables)
}
