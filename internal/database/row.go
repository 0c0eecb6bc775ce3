package database

import "github.com/koustreak/tabula/internal/errs"

// scanMap scans one record into a column-keyed map. Values keep whatever
// Go type the driver produced; callers normalise them against metadata.
func scanMap(scan func(dest ...any) error, columns []string) (map[string]any, error) {
	vals := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := scan(ptrs...); err != nil {
		return nil, err
	}

	m := make(map[string]any, len(columns))
	for i, col := range columns {
		m[col] = vals[i]
	}
	return m, nil
}

// ScanRows drains rows into a slice of maps and closes it.
// The slice is empty, not nil, when there are no rows.
func ScanRows(rows Rows) ([]map[string]any, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "read result columns", err)
	}

	out := []map[string]any{}
	for rows.Next() {
		m, err := scanMap(rows.Scan, columns)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindQueryFailed, "scan row", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "iterate rows", err)
	}
	return out, nil
}

// ScanRow scans a single-row result whose select list is columns.
// A missing row comes back as the driver's not_found error.
func ScanRow(row Row, columns []string) (map[string]any, error) {
	m, err := scanMap(row.Scan, columns)
	if err == nil {
		return m, nil
	}
	if errs.KindOf(err) != errs.ErrKindUnknown {
		return nil, err
	}
	return nil, errs.Wrap(errs.ErrKindQueryFailed, "scan row", err)
}
