package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeType(t *testing.T) {
	tests := []struct {
		declared string
		want     Type
	}{
		{"INTEGER", TypeInteger},
		{"bigint", TypeInteger},
		{"serial", TypeInteger},
		{"BOOLEAN", TypeBoolean},
		{"VARCHAR(255)", TypeText},
		{"character varying", TypeText},
		{"TEXT", TypeText},
		{"uuid", TypeText},
		{"DATETIME", TypeText},
		{"timestamp with time zone", TypeText},
		{"date", TypeText},
		{"BLOB", TypeBlob},
		{"bytea", TypeBlob},
		{"REAL", TypeReal},
		{"double precision", TypeReal},
		{"NUMERIC(10,2)", TypeReal},
		{"FLOAT", TypeReal},
		{"", TypeUnknown},
		{"jsonb", TypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.declared, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeType(tt.declared))
		})
	}
}

func TestPrimaryKeyFallback(t *testing.T) {
	meta := &TableMetadata{
		Name: "log",
		Columns: []ColumnInfo{
			{Name: "ts", Type: TypeText},
			{Name: "line", Type: TypeText},
		},
	}
	meta.applyPrimaryKeyFallback()

	assert.Equal(t, []string{"ts"}, meta.PrimaryKey)
	assert.True(t, meta.Columns[0].IsPrimaryKey)
	assert.False(t, meta.Columns[1].IsPrimaryKey)
	assert.True(t, meta.PrimaryKeyFallback)
	assert.Equal(t, "ts", meta.PrimaryKeyColumn())
}

func TestPrimaryKeyFallback_DeclaredKeyWins(t *testing.T) {
	meta := &TableMetadata{
		Columns:    []ColumnInfo{{Name: "a"}, {Name: "b", IsPrimaryKey: true}},
		PrimaryKey: []string{"b"},
	}
	meta.applyPrimaryKeyFallback()

	assert.Equal(t, []string{"b"}, meta.PrimaryKey)
	assert.False(t, meta.PrimaryKeyFallback)
}

func TestClone_IsDeep(t *testing.T) {
	def := "0"
	meta := &TableMetadata{
		Name:        "t",
		Columns:     []ColumnInfo{{Name: "n", Default: &def}},
		PrimaryKey:  []string{"n"},
		ForeignKeys: []ForeignKeyInfo{{Column: "n", RefTable: "u", RefColumn: "id"}},
	}
	c := meta.Clone()

	c.Columns[0].Name = "changed"
	*c.Columns[0].Default = "1"
	c.PrimaryKey[0] = "changed"
	c.ForeignKeys[0].RefTable = "changed"

	assert.Equal(t, "n", meta.Columns[0].Name)
	assert.Equal(t, "0", *meta.Columns[0].Default)
	assert.Equal(t, "n", meta.PrimaryKey[0])
	assert.Equal(t, "u", meta.ForeignKeys[0].RefTable)
}

func TestColumnHelpers(t *testing.T) {
	meta := &TableMetadata{Columns: []ColumnInfo{
		{Name: "id", AutoIncrement: true},
		{Name: "due", DeclaredType: "DATE"},
	}}

	c, ok := meta.Column("due")
	assert.True(t, ok)
	assert.True(t, c.IsTemporal())
	assert.False(t, c.HasDefault())

	id, _ := meta.Column("id")
	assert.True(t, id.HasDefault())

	_, ok = meta.Column("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"id", "due"}, meta.ColumnNames())
}
