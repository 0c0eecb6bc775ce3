package schema

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/tabula/internal/database"
	"github.com/koustreak/tabula/internal/database/sqlite"
	"github.com/koustreak/tabula/internal/errs"
)

func openSQLite(t *testing.T, ddl ...string) *sqlite.Driver {
	t.Helper()
	d, err := sqlite.New(context.Background(), database.DefaultConfig(database.DriverSQLite, ":memory:"))
	require.NoError(t, err)
	t.Cleanup(d.Close)

	for _, stmt := range ddl {
		_, err := d.Exec(context.Background(), stmt)
		require.NoError(t, err)
	}
	return d
}

func TestNew_PicksByDialect(t *testing.T) {
	in, err := New(openSQLite(t))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteIntrospector{}, in)
}

func TestSQLite_ListTables(t *testing.T) {
	d := openSQLite(t,
		`CREATE TABLE zebras (id INTEGER PRIMARY KEY)`,
		`CREATE TABLE apples (id INTEGER PRIMARY KEY AUTOINCREMENT)`,
	)

	tables, err := NewSQLiteIntrospector(d).ListTables(context.Background())
	require.NoError(t, err)
	// AUTOINCREMENT creates sqlite_sequence, which must be hidden.
	assert.Equal(t, []string{"apples", "zebras"}, tables)
}

func TestSQLite_Introspect(t *testing.T) {
	d := openSQLite(t,
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`,
		`CREATE TABLE tasks (
			id INTEGER PRIMARY KEY,
			title TEXT NOT NULL,
			done BOOLEAN NOT NULL DEFAULT 0,
			weight REAL,
			owner_id INTEGER REFERENCES users(id),
			attachment BLOB,
			misc,
			created_at DATETIME
		)`,
		`INSERT INTO tasks (title) VALUES ('a'), ('b')`,
	)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = func() time.Time { return time.Now().UTC() } })

	meta, err := NewSQLiteIntrospector(d).Introspect(context.Background(), "tasks")
	require.NoError(t, err)

	assert.Equal(t, "tasks", meta.Name)
	assert.Equal(t, []string{"id", "title", "done", "weight", "owner_id", "attachment", "misc", "created_at"}, meta.ColumnNames())
	assert.Equal(t, []string{"id"}, meta.PrimaryKey)
	assert.False(t, meta.PrimaryKeyFallback)
	assert.Equal(t, int64(2), meta.RowCount)
	assert.Equal(t, fixed, meta.RefreshedAt)

	id, _ := meta.Column("id")
	assert.True(t, id.IsPrimaryKey)
	assert.True(t, id.AutoIncrement)
	assert.False(t, id.Nullable)

	title, _ := meta.Column("title")
	assert.Equal(t, TypeText, title.Type)
	assert.False(t, title.Nullable)
	assert.Nil(t, title.Default)

	done, _ := meta.Column("done")
	assert.Equal(t, TypeBoolean, done.Type)
	require.NotNil(t, done.Default)
	assert.Equal(t, "0", *done.Default)

	weight, _ := meta.Column("weight")
	assert.Equal(t, TypeReal, weight.Type)
	assert.True(t, weight.Nullable)

	attachment, _ := meta.Column("attachment")
	assert.Equal(t, TypeBlob, attachment.Type)

	misc, _ := meta.Column("misc")
	assert.Equal(t, TypeUnknown, misc.Type)

	assert.Equal(t, []ForeignKeyInfo{{Column: "owner_id", RefTable: "users", RefColumn: "id"}}, meta.ForeignKeys)
}

func TestSQLite_PrimaryKeyFallback(t *testing.T) {
	d := openSQLite(t, `CREATE TABLE events (happened_at TEXT, payload TEXT)`)

	meta, err := NewSQLiteIntrospector(d).Introspect(context.Background(), "events")
	require.NoError(t, err)

	assert.Equal(t, []string{"happened_at"}, meta.PrimaryKey)
	assert.True(t, meta.PrimaryKeyFallback)
	assert.True(t, meta.Columns[0].IsPrimaryKey)
	assert.Empty(t, meta.ForeignKeys)
}

func TestSQLite_CompositeKeyOrder(t *testing.T) {
	d := openSQLite(t, `CREATE TABLE members (team TEXT, person TEXT, role TEXT, PRIMARY KEY (person, team))`)

	meta, err := NewSQLiteIntrospector(d).Introspect(context.Background(), "members")
	require.NoError(t, err)

	assert.Equal(t, []string{"person", "team"}, meta.PrimaryKey)
	assert.Equal(t, "person", meta.PrimaryKeyColumn())
	team, _ := meta.Column("team")
	assert.False(t, team.AutoIncrement)
}

func TestSQLite_MissingTableIsSchemaError(t *testing.T) {
	d := openSQLite(t)

	_, err := NewSQLiteIntrospector(d).Introspect(context.Background(), `ghosts"; DROP TABLE x; --`)
	assert.True(t, errs.IsSchema(err))
}
