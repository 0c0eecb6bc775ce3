package crud

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/tabula/internal/errs"
	"github.com/koustreak/tabula/internal/schema"
)

func TestCoerce(t *testing.T) {
	intCol := schema.ColumnInfo{Name: "qty", Type: schema.TypeInteger, Nullable: true}
	realCol := schema.ColumnInfo{Name: "price", Type: schema.TypeReal}
	boolCol := schema.ColumnInfo{Name: "active", Type: schema.TypeBoolean}
	textCol := schema.ColumnInfo{Name: "note", Type: schema.TypeText, Nullable: true}
	blobCol := schema.ColumnInfo{Name: "data", Type: schema.TypeBlob}
	anyCol := schema.ColumnInfo{Name: "misc", Type: schema.TypeUnknown}
	when := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name string
		col  schema.ColumnInfo
		in   any
		want any
	}{
		{"int from string", intCol, " 42 ", int64(42)},
		{"int from whole float string", intCol, "3.0", int64(3)},
		{"int from float", intCol, 7.0, int64(7)},
		{"int from json number", intCol, json.Number("12"), int64(12)},
		{"int from int", intCol, 5, int64(5)},
		{"int from bool", intCol, true, int64(1)},
		{"empty string on nullable int", intCol, "", nil},
		{"nil stays nil", realCol, nil, nil},
		{"real from string", realCol, "9.50", 9.5},
		{"real from int", realCol, 3, 3.0},
		{"bool from yes", boolCol, "yes", true},
		{"bool from on", boolCol, "ON", true},
		{"bool from n", boolCol, "n", false},
		{"bool from 1", boolCol, "1", true},
		{"bool from false", boolCol, "false", false},
		{"bool from int", boolCol, 0, false},
		{"text empty kept", textCol, "", ""},
		{"text from int", textCol, 12, "12"},
		{"text from float", textCol, 1.5, "1.5"},
		{"text keeps time", textCol, when, when},
		{"blob from string", blobCol, "abc", []byte("abc")},
		{"unknown passes through", anyCol, []int{1}, []int{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerce("t", tt.col, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoerce_Rejects(t *testing.T) {
	tests := []struct {
		name string
		col  schema.ColumnInfo
		in   any
	}{
		{"int from words", schema.ColumnInfo{Name: "qty", Type: schema.TypeInteger}, "ten"},
		{"int from fraction", schema.ColumnInfo{Name: "qty", Type: schema.TypeInteger}, "2.5"},
		{"int overflow from json number", schema.ColumnInfo{Name: "qty", Type: schema.TypeInteger}, json.Number("1e20")},
		{"int overflow from float", schema.ColumnInfo{Name: "qty", Type: schema.TypeInteger}, float64(1e19)},
		{"int underflow from string", schema.ColumnInfo{Name: "qty", Type: schema.TypeInteger}, "-1e19"},
		{"int from empty not null", schema.ColumnInfo{Name: "qty", Type: schema.TypeInteger}, ""},
		{"real from words", schema.ColumnInfo{Name: "price", Type: schema.TypeReal}, "cheap"},
		{"bool from maybe", schema.ColumnInfo{Name: "active", Type: schema.TypeBoolean}, "maybe"},
		{"blob from int", schema.ColumnInfo{Name: "data", Type: schema.TypeBlob}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := coerce("items", tt.col, tt.in)
			require.Error(t, err)
			assert.True(t, errs.IsValidation(err))

			var e *errs.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, "items", e.Table)
			assert.Equal(t, tt.col.Name, e.Column)
		})
	}
}
