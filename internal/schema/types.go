package schema

import (
	"strings"
	"time"
)

// Type is the normalized storage class of a column.
type Type string

const (
	TypeInteger Type = "integer"
	TypeReal    Type = "real"
	TypeText    Type = "text"
	TypeBlob    Type = "blob"
	TypeBoolean Type = "boolean"
	TypeUnknown Type = "unknown"
)

// typeRules is evaluated top to bottom; the first rule with a matching
// substring decides the type.
var typeRules = []struct {
	typ  Type
	subs []string
}{
	{TypeBoolean, []string{"BOOL"}},
	{TypeInteger, []string{"INT", "SERIAL"}},
	{TypeText, []string{"CHAR", "CLOB", "TEXT", "STRING", "UUID", "ENUM", "DATE", "TIME"}},
	{TypeBlob, []string{"BLOB", "BYTEA", "BINARY"}},
	{TypeReal, []string{"REAL", "FLOA", "DOUB", "NUMERIC", "DECIMAL", "MONEY"}},
}

// NormalizeType maps a declared catalog type such as "VARCHAR(255)" or
// "timestamp with time zone" to a Type. Anything unrecognised, including an
// empty declaration, is TypeUnknown.
func NormalizeType(declared string) Type {
	upper := strings.ToUpper(strings.TrimSpace(declared))
	if upper == "" {
		return TypeUnknown
	}
	for _, r := range typeRules {
		for _, s := range r.subs {
			if strings.Contains(upper, s) {
				return r.typ
			}
		}
	}
	return TypeUnknown
}

// ColumnInfo describes a single column in a table.
type ColumnInfo struct {
	Name          string  `json:"name"`
	Type          Type    `json:"type"`
	DeclaredType  string  `json:"declared_type"`
	Nullable      bool    `json:"nullable"`
	Default       *string `json:"default"` // nil if no default
	IsPrimaryKey  bool    `json:"is_primary_key"`
	AutoIncrement bool    `json:"auto_increment"`
}

// HasDefault reports whether the database fills the column when it is omitted.
func (c ColumnInfo) HasDefault() bool {
	return c.Default != nil || c.AutoIncrement
}

// IsTemporal reports whether the declared type names a date or time.
func (c ColumnInfo) IsTemporal() bool {
	upper := strings.ToUpper(c.DeclaredType)
	return strings.Contains(upper, "DATE") || strings.Contains(upper, "TIME")
}

// ForeignKeyInfo describes a reference from a column to another table.
// It is informational only.
type ForeignKeyInfo struct {
	Column    string `json:"column"`
	RefTable  string `json:"ref_table"`
	RefColumn string `json:"ref_column"`
}

// TableMetadata is everything the introspector learned about one table.
type TableMetadata struct {
	Name        string           `json:"table_name"`
	Columns     []ColumnInfo     `json:"columns"`
	ForeignKeys []ForeignKeyInfo `json:"foreign_keys"`
	PrimaryKey  []string         `json:"primary_key"`
	RowCount    int64            `json:"row_count"`
	RefreshedAt time.Time        `json:"last_refreshed"`

	// PrimaryKeyFallback is set when the table declares no primary key and
	// the first column was designated instead.
	PrimaryKeyFallback bool `json:"primary_key_fallback,omitempty"`
}

// PrimaryKeyColumn returns the column rows are addressed by.
func (t *TableMetadata) PrimaryKeyColumn() string {
	if len(t.PrimaryKey) == 0 {
		return ""
	}
	return t.PrimaryKey[0]
}

// Column looks up a column by exact name.
func (t *TableMetadata) Column(name string) (ColumnInfo, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnInfo{}, false
}

// ColumnNames returns the column names in schema order.
func (t *TableMetadata) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Clone returns a deep copy.
func (t *TableMetadata) Clone() *TableMetadata {
	if t == nil {
		return nil
	}
	out := *t
	out.Columns = make([]ColumnInfo, len(t.Columns))
	for i, c := range t.Columns {
		if c.Default != nil {
			d := *c.Default
			c.Default = &d
		}
		out.Columns[i] = c
	}
	out.ForeignKeys = append([]ForeignKeyInfo(nil), t.ForeignKeys...)
	out.PrimaryKey = append([]string(nil), t.PrimaryKey...)
	return &out
}

// applyPrimaryKeyFallback designates the first column as primary key when
// none was declared.
func (t *TableMetadata) applyPrimaryKeyFallback() {
	if len(t.PrimaryKey) > 0 || len(t.Columns) == 0 {
		return
	}
	t.Columns[0].IsPrimaryKey = true
	t.PrimaryKey = []string{t.Columns[0].Name}
	t.PrimaryKeyFallback = true
}
