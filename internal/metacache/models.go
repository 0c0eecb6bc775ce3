package metacache

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"

	"github.com/koustreak/tabula/internal/schema"
	"github.com/koustreak/tabula/internal/semantics"
)

// tableMetadataRecord is one row of the table_metadata system table.
type tableMetadataRecord struct {
	bun.BaseModel `bun:"table:table_metadata"`

	ID                 int64     `bun:"id,pk,autoincrement"`
	TableName          string    `bun:"table_name,notnull,unique"`
	RowCount           int64     `bun:"row_count,notnull,default:0"`
	ColumnsJSON        string    `bun:"columns_json,notnull"`
	ForeignKeysJSON    string    `bun:"foreign_keys_json,notnull"`
	PrimaryKeyJSON     string    `bun:"primary_key_json,notnull"`
	PrimaryKeyFallback bool      `bun:"primary_key_fallback,notnull,default:false"`
	RefreshedAt        time.Time `bun:"refreshed_at,notnull"`
}

// columnSemanticRecord is one row of the column_semantics system table.
type columnSemanticRecord struct {
	bun.BaseModel `bun:"table:column_semantics"`

	ID           int64  `bun:"id,pk,autoincrement"`
	TableName    string `bun:"table_name,notnull,unique:table_column"`
	ColumnName   string `bun:"column_name,notnull,unique:table_column"`
	SemanticType string `bun:"semantic_type,notnull"`
}

// Entry is the cached state of one table.
type Entry struct {
	Meta      *schema.TableMetadata
	Semantics semantics.ColumnSemantics
}

func (e Entry) clone() Entry {
	return Entry{Meta: e.Meta.Clone(), Semantics: e.Semantics.Clone()}
}

func toRecords(e Entry) (*tableMetadataRecord, []columnSemanticRecord, error) {
	cols, err := json.Marshal(e.Meta.Columns)
	if err != nil {
		return nil, nil, err
	}
	fks, err := json.Marshal(e.Meta.ForeignKeys)
	if err != nil {
		return nil, nil, err
	}
	pk, err := json.Marshal(e.Meta.PrimaryKey)
	if err != nil {
		return nil, nil, err
	}

	meta := &tableMetadataRecord{
		TableName:          e.Meta.Name,
		RowCount:           e.Meta.RowCount,
		ColumnsJSON:        string(cols),
		ForeignKeysJSON:    string(fks),
		PrimaryKeyJSON:     string(pk),
		PrimaryKeyFallback: e.Meta.PrimaryKeyFallback,
		RefreshedAt:        e.Meta.RefreshedAt.UTC(),
	}

	sems := make([]columnSemanticRecord, 0, len(e.Semantics))
	for _, col := range e.Meta.ColumnNames() {
		if t, ok := e.Semantics[col]; ok {
			sems = append(sems, columnSemanticRecord{
				TableName:    e.Meta.Name,
				ColumnName:   col,
				SemanticType: string(t),
			})
		}
	}
	return meta, sems, nil
}

func fromRecord(r *tableMetadataRecord) (*schema.TableMetadata, error) {
	meta := &schema.TableMetadata{
		Name:               r.TableName,
		RowCount:           r.RowCount,
		PrimaryKeyFallback: r.PrimaryKeyFallback,
		RefreshedAt:        r.RefreshedAt,
	}
	if err := json.Unmarshal([]byte(r.ColumnsJSON), &meta.Columns); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(r.ForeignKeysJSON), &meta.ForeignKeys); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(r.PrimaryKeyJSON), &meta.PrimaryKey); err != nil {
		return nil, err
	}
	return meta, nil
}
