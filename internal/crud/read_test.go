package crud

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/tabula/internal/errs"
)

const productsDDL = `CREATE TABLE products (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	category TEXT,
	price REAL,
	created_at TEXT,
	deleted_at TEXT
)`

func seedProducts(t *testing.T, h *harness) {
	t.Helper()
	ctx := context.Background()
	items := []map[string]any{
		{"name": "Red Apple", "category": "fruit", "price": 1.5},
		{"name": "Banana", "category": "fruit", "price": 0.5},
		{"name": "Carrot", "category": "vegetable", "price": 0.75},
		{"name": "50%_off voucher", "category": nil, "price": 0},
		{"name": "Green apple", "category": "fruit", "price": 1.25},
	}
	for _, it := range items {
		_, err := h.engine.CreateRow(ctx, "products", it, "")
		require.NoError(t, err)
	}
}

func names(p *Page) []string {
	out := make([]string, len(p.Rows))
	for i, r := range p.Rows {
		out[i] = fmt.Sprint(r["name"])
	}
	return out
}

func TestListRows_DefaultsAndOrder(t *testing.T) {
	h := newHarness(t, productsDDL)
	seedProducts(t, h)

	page, err := h.engine.ListRows(context.Background(), "products", ListQuery{})
	require.NoError(t, err)

	assert.Equal(t, 1, page.Page)
	assert.Equal(t, DefaultPageSize, page.PageSize)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, []string{"Red Apple", "Banana", "Carrot", "50%_off voucher", "Green apple"}, names(page))

	page, err = h.engine.ListRows(context.Background(), "products", ListQuery{Desc: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Green apple", "50%_off voucher", "Carrot", "Banana", "Red Apple"}, names(page))
}

func TestListRows_Pagination(t *testing.T) {
	h := newHarness(t, productsDDL)
	seedProducts(t, h)
	ctx := context.Background()

	page, err := h.engine.ListRows(ctx, "products", ListQuery{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"Carrot", "50%_off voucher"}, names(page))
	assert.Equal(t, int64(5), page.Total)

	page, err = h.engine.ListRows(ctx, "products", ListQuery{Page: 4, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, page.Rows)
	assert.Equal(t, int64(5), page.Total)
}

func TestListRows_InvalidPaging(t *testing.T) {
	h := newHarness(t, productsDDL)
	ctx := context.Background()

	tests := []ListQuery{
		{Page: -1},
		{PageSize: -5},
		{PageSize: MaxPageSize + 1},
	}
	for _, q := range tests {
		_, err := h.engine.ListRows(ctx, "products", q)
		assert.True(t, errs.IsValidation(err), "%+v", q)
	}

	small := New(h.db, h.cache, WithMaxPageSize(3))
	_, err := small.ListRows(ctx, "products", ListQuery{PageSize: 4})
	assert.True(t, errs.IsValidation(err))
	page, err := small.ListRows(ctx, "products", ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.PageSize)
}

func TestListRows_SoftDeleteFilteringMatchesCount(t *testing.T) {
	h := newHarness(t, productsDDL)
	seedProducts(t, h)
	ctx := context.Background()

	require.NoError(t, h.engine.DeleteRow(ctx, "products", 2))
	require.NoError(t, h.engine.DeleteRow(ctx, "products", "4"))

	live, err := h.engine.ListRows(ctx, "products", ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), live.Total)
	assert.Len(t, live.Rows, 3)
	for _, r := range live.Rows {
		assert.Nil(t, r["deleted_at"])
	}

	all, err := h.engine.ListRows(ctx, "products", ListQuery{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Equal(t, int64(5), all.Total)
	assert.Len(t, all.Rows, 5)
}

func TestListRows_Filters(t *testing.T) {
	h := newHarness(t, productsDDL)
	seedProducts(t, h)
	ctx := context.Background()

	page, err := h.engine.ListRows(ctx, "products", ListQuery{Filters: map[string]any{"category": "fruit"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Red Apple", "Banana", "Green apple"}, names(page))
	assert.Equal(t, int64(3), page.Total)

	page, err = h.engine.ListRows(ctx, "products", ListQuery{Filters: map[string]any{"category": nil}})
	require.NoError(t, err)
	assert.Equal(t, []string{"50%_off voucher"}, names(page))

	page, err = h.engine.ListRows(ctx, "products", ListQuery{Filters: map[string]any{"id": "3"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Carrot"}, names(page))

	_, err = h.engine.ListRows(ctx, "products", ListQuery{Filters: map[string]any{"price": "cheap"}})
	assert.True(t, errs.IsValidation(err))
}

func TestListRows_Search(t *testing.T) {
	h := newHarness(t, productsDDL)
	seedProducts(t, h)
	ctx := context.Background()

	page, err := h.engine.ListRows(ctx, "products", ListQuery{Search: "APPLE"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Red Apple", "Green apple"}, names(page))
	assert.Equal(t, int64(2), page.Total)

	page, err = h.engine.ListRows(ctx, "products", ListQuery{Search: "%_"})
	require.NoError(t, err)
	assert.Equal(t, []string{"50%_off voucher"}, names(page))

	page, err = h.engine.ListRows(ctx, "products", ListQuery{Search: "veg", Filters: map[string]any{"category": "fruit"}})
	require.NoError(t, err)
	assert.Empty(t, page.Rows)
	assert.Equal(t, int64(0), page.Total)
}

func TestListRows_Sort(t *testing.T) {
	h := newHarness(t, productsDDL)
	seedProducts(t, h)
	ctx := context.Background()

	page, err := h.engine.ListRows(ctx, "products", ListQuery{Sort: "price"})
	require.NoError(t, err)
	assert.Equal(t, []string{"50%_off voucher", "Banana", "Carrot", "Green apple", "Red Apple"}, names(page))

	page, err = h.engine.ListRows(ctx, "products", ListQuery{Sort: "category", Desc: true})
	require.NoError(t, err)
	// NULL sorts first in SQLite, so last when descending; ties fall back to id.
	assert.Equal(t, []string{"Carrot", "Red Apple", "Banana", "Green apple", "50%_off voucher"}, names(page))
}

func TestGetRow(t *testing.T) {
	h := newHarness(t, productsDDL)
	seedProducts(t, h)
	ctx := context.Background()

	row, err := h.engine.GetRow(ctx, "products", "1")
	require.NoError(t, err)
	assert.Equal(t, "Red Apple", row["name"])
	assert.Equal(t, 1.5, row["price"])

	_, err = h.engine.GetRow(ctx, "products", 99)
	assert.True(t, errs.IsNotFound(err))

	_, err = h.engine.GetRow(ctx, "products", "abc")
	assert.True(t, errs.IsValidation(err))

	_, err = h.engine.GetRow(ctx, "products", nil)
	assert.True(t, errs.IsValidation(err))
}
