package schema

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/tabula/internal/database"
	"github.com/koustreak/tabula/internal/database/mysql"
	"github.com/koustreak/tabula/internal/errs"
)

func mockMySQL(t *testing.T) (*mysql.Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return mysql.FromSQL(db, database.DefaultConfig(database.DriverMySQL, "")), mock
}

func expectTables(mock sqlmock.Sqlmock, names ...string) {
	rows := sqlmock.NewRows([]string{"table_name"})
	for _, n := range names {
		rows.AddRow(n)
	}
	mock.ExpectQuery("FROM information_schema.tables").WillReturnRows(rows)
}

func TestMySQL_Introspect(t *testing.T) {
	d, mock := mockMySQL(t)

	expectTables(mock, "orders", "users")
	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "column_type", "is_nullable", "column_default", "auto_increment", "ordinal_position"}).
			AddRow("id", "int(11)", 0, nil, 1, 1).
			AddRow("user_id", "int(11)", 0, nil, 0, nil).
			AddRow("note", "varchar(255)", 1, "n/a", 0, nil))
	mock.ExpectQuery("FROM information_schema.key_column_usage").
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "referenced_table_name", "referenced_column_name"}).
			AddRow("user_id", "users", "id"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM `orders`")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	meta, err := NewMySQLIntrospector(d).Introspect(context.Background(), "orders")
	require.NoError(t, err)

	assert.Equal(t, []string{"id"}, meta.PrimaryKey)
	assert.Equal(t, int64(42), meta.RowCount)
	assert.Equal(t, []ForeignKeyInfo{{Column: "user_id", RefTable: "users", RefColumn: "id"}}, meta.ForeignKeys)

	id, _ := meta.Column("id")
	assert.True(t, id.AutoIncrement)
	assert.Equal(t, TypeInteger, id.Type)

	note, _ := meta.Column("note")
	assert.True(t, note.Nullable)
	require.NotNil(t, note.Default)
	assert.Equal(t, "n/a", *note.Default)
	assert.Equal(t, TypeText, note.Type)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQL_UnknownTable(t *testing.T) {
	d, mock := mockMySQL(t)
	expectTables(mock, "orders")

	_, err := NewMySQLIntrospector(d).Introspect(context.Background(), "ghosts")
	assert.True(t, errs.IsSchema(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
