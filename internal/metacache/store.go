package metacache

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3" // register "sqlite3" driver
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/koustreak/tabula/internal/errs"
	"github.com/koustreak/tabula/internal/semantics"
)

// Store persists cache entries in the SQLite system database.
// Every mutating method runs in a single transaction.
type Store struct {
	db *bun.DB
}

// OpenStore opens (creating if needed) the system database at path and
// ensures the cache tables exist.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on&_busy_timeout=5000"
	}
	sqldb, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, fmt.Sprintf("failed to open system store %q", path), err)
	}
	// A single connection keeps ":memory:" stores alive and serializes writers.
	sqldb.SetMaxOpenConns(1)
	sqldb.SetConnMaxLifetime(0)

	s, err := NewStore(ctx, bun.NewDB(sqldb, sqlitedialect.New()))
	if err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an open bun database and creates the cache tables.
func NewStore(ctx context.Context, db *bun.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewCreateTable().
			Model((*tableMetadataRecord)(nil)).
			IfNotExists().
			Exec(ctx); err != nil {
			return errs.Wrap(errs.ErrKindQueryFailed, "failed to create table_metadata table", err)
		}
		if _, err := tx.NewCreateTable().
			Model((*columnSemanticRecord)(nil)).
			IfNotExists().
			Exec(ctx); err != nil {
			return errs.Wrap(errs.ErrKindQueryFailed, "failed to create column_semantics table", err)
		}
		if _, err := tx.ExecContext(ctx,
			`CREATE INDEX IF NOT EXISTS idx_column_semantics_table ON column_semantics(table_name)`); err != nil {
			return errs.Wrap(errs.ErrKindQueryFailed, "failed to create column_semantics index", err)
		}
		return nil
	})
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadAll reads every persisted entry keyed by table name.
func (s *Store) LoadAll(ctx context.Context) (map[string]Entry, error) {
	var metas []tableMetadataRecord
	if err := s.db.NewSelect().Model(&metas).Order("table_name").Scan(ctx); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to load table metadata", err)
	}

	var sems []columnSemanticRecord
	if err := s.db.NewSelect().Model(&sems).Order("table_name", "column_name").Scan(ctx); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to load column semantics", err)
	}

	out := make(map[string]Entry, len(metas))
	for i := range metas {
		meta, err := fromRecord(&metas[i])
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindQueryFailed,
				fmt.Sprintf("corrupt metadata for table %q", metas[i].TableName), err)
		}
		out[meta.Name] = Entry{Meta: meta, Semantics: make(semantics.ColumnSemantics)}
	}
	for _, r := range sems {
		e, ok := out[r.TableName]
		if !ok {
			continue
		}
		if t, ok := semantics.ParseSemanticType(r.SemanticType); ok {
			e.Semantics[r.ColumnName] = t
		}
	}
	return out, nil
}

// SaveEntry replaces the stored rows of one table.
func (s *Store) SaveEntry(ctx context.Context, e Entry) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := deleteTable(ctx, tx, e.Meta.Name); err != nil {
			return err
		}
		return insertEntry(ctx, tx, e)
	})
}

// DeleteEntry removes one table's rows.
func (s *Store) DeleteEntry(ctx context.Context, table string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return deleteTable(ctx, tx, table)
	})
}

// ReplaceAll swaps the whole stored set for entries.
func (s *Store) ReplaceAll(ctx context.Context, entries []Entry) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := clearAll(ctx, tx); err != nil {
			return err
		}
		for _, e := range entries {
			if err := insertEntry(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

// Clear deletes every cached entry.
func (s *Store) Clear(ctx context.Context) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return clearAll(ctx, tx)
	})
}

func insertEntry(ctx context.Context, tx bun.Tx, e Entry) error {
	meta, sems, err := toRecords(e)
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, fmt.Sprintf("cannot encode metadata for table %q", e.Meta.Name), err)
	}
	if _, err := tx.NewInsert().Model(meta).Exec(ctx); err != nil {
		return errs.Wrap(errs.ErrKindQueryFailed, fmt.Sprintf("failed to save metadata for table %q", e.Meta.Name), err)
	}
	if len(sems) == 0 {
		return nil
	}
	if _, err := tx.NewInsert().Model(&sems).Exec(ctx); err != nil {
		return errs.Wrap(errs.ErrKindQueryFailed, fmt.Sprintf("failed to save semantics for table %q", e.Meta.Name), err)
	}
	return nil
}

func deleteTable(ctx context.Context, tx bun.Tx, table string) error {
	if _, err := tx.NewDelete().Model((*columnSemanticRecord)(nil)).
		Where("table_name = ?", table).Exec(ctx); err != nil {
		return errs.Wrap(errs.ErrKindQueryFailed, fmt.Sprintf("failed to delete semantics for table %q", table), err)
	}
	if _, err := tx.NewDelete().Model((*tableMetadataRecord)(nil)).
		Where("table_name = ?", table).Exec(ctx); err != nil {
		return errs.Wrap(errs.ErrKindQueryFailed, fmt.Sprintf("failed to delete metadata for table %q", table), err)
	}
	return nil
}

func clearAll(ctx context.Context, tx bun.Tx) error {
	if _, err := tx.NewDelete().Model((*columnSemanticRecord)(nil)).Where("1 = 1").Exec(ctx); err != nil {
		return errs.Wrap(errs.ErrKindQueryFailed, "failed to clear column semantics", err)
	}
	if _, err := tx.NewDelete().Model((*tableMetadataRecord)(nil)).Where("1 = 1").Exec(ctx); err != nil {
		return errs.Wrap(errs.ErrKindQueryFailed, "failed to clear table metadata", err)
	}
	return nil
}
