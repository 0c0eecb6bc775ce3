package crud

import (
	"context"
	"fmt"
	"sort"

	"github.com/koustreak/tabula/internal/database"
	"github.com/koustreak/tabula/internal/errs"
	"github.com/koustreak/tabula/internal/semantics"
)

// prepare validates and coerces submitted data against t's columns.
// The input map is never modified.
func (e *Engine) prepare(t *table, data map[string]any) (map[string]any, error) {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	record := make(map[string]any, len(data))
	for _, name := range names {
		col, err := t.column(name)
		if err != nil {
			return nil, err
		}
		v, err := coerce(t.name(), col, data[name])
		if err != nil {
			return nil, err
		}
		// Let the database assign generated keys.
		if v == nil && col.AutoIncrement {
			continue
		}
		record[name] = v
	}
	return record, nil
}

// CreateRow inserts data into tableName and returns the new primary key.
// Absent created_at/updated_at columns receive the current time and absent
// created_by/updated_by columns receive currentUser, when one is given.
func (e *Engine) CreateRow(ctx context.Context, tableName string, data map[string]any, currentUser string) (any, error) {
	t, err := e.resolve(tableName)
	if err != nil {
		return nil, err
	}
	record, err := e.prepare(t, data)
	if err != nil {
		return nil, err
	}

	for _, col := range t.meta.Columns {
		if _, present := record[col.Name]; present {
			continue
		}
		switch st := t.sem.Of(col.Name); {
		case st.IsAutoTimestamp():
			record[col.Name] = e.timestamp(col)
		case st.IsAutoUser() && currentUser != "":
			record[col.Name] = currentUser
		}
	}

	for _, col := range t.meta.Columns {
		if col.Nullable || col.HasDefault() {
			continue
		}
		if v, ok := record[col.Name]; !ok || v == nil {
			return nil, errs.Validation(tableName, col.Name, fmt.Sprintf("column %q is required", col.Name))
		}
	}

	pk := t.meta.PrimaryKeyColumn()
	supplied := record[pk]
	if t.callerKeyed() && supplied == nil {
		return nil, errs.Validation(tableName, pk, fmt.Sprintf("column %q identifies the row and is required", pk))
	}

	ins := database.Insert(tableName, e.dialect)
	for _, col := range t.meta.Columns {
		if v, ok := record[col.Name]; ok {
			ins.Value(col.Name, v)
		}
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	var id any
	err = database.WithTx(ctx, e.db, func(tx database.Tx) error {
		switch {
		case supplied != nil:
			sqlText, args, err := ins.Build()
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, sqlText, args...); err != nil {
				return err
			}
			id = supplied
		case e.dialect.SupportsReturning():
			sqlText, args, err := ins.Returning(pk).Build()
			if err != nil {
				return err
			}
			return tx.QueryRow(ctx, sqlText, args...).Scan(&id)
		default:
			sqlText, args, err := ins.Build()
			if err != nil {
				return err
			}
			res, err := tx.Exec(ctx, sqlText, args...)
			if err != nil {
				return err
			}
			id = res.LastInsertID
		}
		return nil
	})
	if err != nil {
		return nil, annotate(err, tableName)
	}
	return normalizeValue(t.pkColumn(), id), nil
}

// UpdateRow applies data to the row with primary key pk and returns the
// row as stored afterwards. Primary key and created_* columns cannot be
// changed; absent updated_at/updated_by columns are filled in.
func (e *Engine) UpdateRow(ctx context.Context, tableName string, pk any, data map[string]any, currentUser string) (Row, error) {
	t, err := e.resolve(tableName)
	if err != nil {
		return nil, err
	}
	pkv, err := t.pkValue(pk)
	if err != nil {
		return nil, err
	}

	record, err := e.prepare(t, data)
	if err != nil {
		return nil, err
	}
	for _, name := range t.meta.ColumnNames() {
		if _, ok := record[name]; !ok {
			continue
		}
		if t.isPrimaryKey(name) {
			return nil, errs.Validation(tableName, name, fmt.Sprintf("primary key column %q cannot be changed", name))
		}
		if t.sem.Of(name).IsCreation() {
			return nil, errs.Validation(tableName, name, fmt.Sprintf("column %q is set on create and cannot be changed", name))
		}
	}

	for _, col := range t.meta.Columns {
		if _, present := record[col.Name]; present {
			continue
		}
		switch t.sem.Of(col.Name) {
		case semantics.UpdatedAt:
			record[col.Name] = e.timestamp(col)
		case semantics.UpdatedBy:
			if currentUser != "" {
				record[col.Name] = currentUser
			}
		}
	}

	upd := database.Update(tableName, e.dialect).Where(t.meta.PrimaryKeyColumn(), "=", pkv)
	for _, col := range t.meta.Columns {
		v, ok := record[col.Name]
		if !ok {
			continue
		}
		if v == nil && !col.Nullable {
			return nil, errs.Validation(tableName, col.Name, fmt.Sprintf("column %q cannot be null", col.Name))
		}
		upd.Set(col.Name, v)
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	var row Row
	err = database.WithTx(ctx, e.db, func(tx database.Tx) error {
		found, err := e.exists(ctx, tx, t, pkv)
		if err != nil {
			return err
		}
		if !found {
			return errs.NotFound(tableName, pkv)
		}

		if len(record) > 0 {
			sqlText, args, err := upd.Build()
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, sqlText, args...); err != nil {
				return err
			}
		}

		row, err = e.fetch(ctx, tx, t, pkv)
		return err
	})
	if err != nil {
		return nil, annotate(err, tableName)
	}
	return row, nil
}

// DeleteRow removes the row with primary key pk. Tables with a deleted_at
// column are soft deleted: the column is stamped and the row stays. Deleting
// an already soft-deleted row succeeds and keeps the original timestamp.
func (e *Engine) DeleteRow(ctx context.Context, tableName string, pk any) error {
	t, err := e.resolve(tableName)
	if err != nil {
		return err
	}
	pkv, err := t.pkValue(pk)
	if err != nil {
		return err
	}
	pkCol := t.meta.PrimaryKeyColumn()

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	err = database.WithTx(ctx, e.db, func(tx database.Tx) error {
		var (
			sqlText string
			args    []any
			err     error
		)
		deletedCol, soft := t.softDeleteColumn()
		if soft {
			col, _ := t.meta.Column(deletedCol)
			sqlText, args, err = database.Update(tableName, e.dialect).
				Set(deletedCol, e.timestamp(col)).
				Where(pkCol, "=", pkv).
				WhereNull(deletedCol).
				Build()
		} else {
			sqlText, args, err = database.Delete(tableName, e.dialect).
				Where(pkCol, "=", pkv).
				Build()
		}
		if err != nil {
			return err
		}

		res, err := tx.Exec(ctx, sqlText, args...)
		if err != nil {
			return err
		}
		if res.RowsAffected > 0 {
			return nil
		}

		if soft {
			found, err := e.exists(ctx, tx, t, pkv)
			if err != nil {
				return err
			}
			if found {
				return nil
			}
		}
		return errs.NotFound(tableName, pkv)
	})
	return annotate(err, tableName)
}
