package filestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListOptions_Match(t *testing.T) {
	opts := ListOptions{Suffixes: []string{".db", ".sqlite", ".sqlite3"}}

	tests := []struct {
		key  string
		want bool
	}{
		{"exports/shop.db", true},
		{"exports/SHOP.SQLITE3", true},
		{"archive.sqlite", true},
		{"notes.txt", false},
		{"shop.db.bak", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, opts.Match(tt.key), tt.key)
	}

	assert.True(t, ListOptions{}.Match("anything"))
}

func TestObjectInfo_Base(t *testing.T) {
	assert.Equal(t, "shop.db", ObjectInfo{Key: "exports/2024/shop.db"}.Base())
	assert.Equal(t, "exports", ObjectInfo{Key: "exports/", IsDir: true}.Base())
}
