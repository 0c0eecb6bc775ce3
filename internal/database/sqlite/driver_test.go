package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/tabula/internal/database"
	"github.com/koustreak/tabula/internal/errs"
)

func openMemory(t *testing.T) *Driver {
	t.Helper()
	d, err := New(context.Background(), database.DefaultConfig(database.DriverSQLite, ":memory:"))
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d
}

func TestWithDefaults(t *testing.T) {
	cfg := database.DefaultConfig(database.DriverSQLite, "")
	assert.Equal(t, "shop.db?_foreign_keys=on&_busy_timeout=30000", withDefaults("shop.db", cfg))
	assert.Equal(t, "shop.db?mode=ro&_foreign_keys=on&_busy_timeout=30000", withDefaults("shop.db?mode=ro", cfg))
	assert.Equal(t, "shop.db?_fk=1&_busy_timeout=10", withDefaults("shop.db?_fk=1&_busy_timeout=10", cfg))
}

func TestParseConstraint(t *testing.T) {
	c, table, col := parseConstraint("UNIQUE constraint failed: users.email")
	assert.Equal(t, "users.email", c)
	assert.Equal(t, "users", table)
	assert.Equal(t, "email", col)

	c, table, col = parseConstraint("CHECK constraint failed: positive_price")
	assert.Equal(t, "positive_price", c)
	assert.Empty(t, table)
	assert.Empty(t, col)

	c, _, _ = parseConstraint("FOREIGN KEY constraint failed")
	assert.Empty(t, c)
}

func TestDriver_ConstraintViolations(t *testing.T) {
	d := openMemory(t)
	ctx := context.Background()

	_, err := d.Exec(ctx, `CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL UNIQUE)`)
	require.NoError(t, err)
	_, err = d.Exec(ctx, `CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER REFERENCES users(id))`)
	require.NoError(t, err)

	res, err := d.Exec(ctx, `INSERT INTO users (email) VALUES (?)`, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.LastInsertID)

	_, err = d.Exec(ctx, `INSERT INTO users (email) VALUES (?)`, "a@example.com")
	require.True(t, errs.IsConstraint(err))
	var e *errs.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "email", e.Column)

	_, err = d.Exec(ctx, `INSERT INTO orders (user_id) VALUES (?)`, 99)
	assert.True(t, errs.IsConstraint(err), "foreign keys must be enforced")
}

func TestDriver_NotFoundAndMissingTable(t *testing.T) {
	d := openMemory(t)
	ctx := context.Background()

	_, err := d.Exec(ctx, `CREATE TABLE t (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)

	var id int64
	err = d.QueryRow(ctx, `SELECT id FROM t WHERE id = ?`, 1).Scan(&id)
	assert.True(t, errs.IsNotFound(err))

	_, err = d.Query(ctx, `SELECT * FROM ghosts`)
	assert.True(t, errs.IsSchema(err))
}

func TestDriver_RollbackAfterCommitIsNoop(t *testing.T) {
	d := openMemory(t)
	ctx := context.Background()

	tx, err := d.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.Exec(ctx, `CREATE TABLE t (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	assert.NoError(t, tx.Rollback(ctx))
}
