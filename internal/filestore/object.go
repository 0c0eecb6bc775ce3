package filestore

import (
	"io"
	"path"
	"strings"
	"time"
)

// ObjectInfo describes a single object stored in a bucket.
type ObjectInfo struct {
	// Key is the full object path within the bucket (e.g. "exports/shop.db").
	Key string

	// Size is the byte size of the object. -1 if unknown.
	Size int64

	ContentType  string
	ETag         string
	LastModified time.Time

	// IsDir is true for virtual directory (prefix) entries.
	IsDir bool
}

// Base returns the last element of the key.
func (o ObjectInfo) Base() string {
	return path.Base(strings.TrimSuffix(o.Key, "/"))
}

// Object is a streaming handle to an object's content.
type Object interface {
	io.ReadCloser

	// Info returns the metadata for this object.
	Info() *ObjectInfo
}

// ListOptions controls how ListObjects filters results.
type ListOptions struct {
	// Prefix restricts results to keys starting with this string.
	Prefix string

	// Recursive lists everything under Prefix instead of grouping by
	// virtual directories.
	Recursive bool

	// Suffixes keeps only keys ending in one of these, compared
	// case-insensitively. Empty keeps everything.
	Suffixes []string

	// Limit caps the number of results. 0 means no cap.
	Limit int
}

// Match reports whether key passes the suffix filter.
func (o ListOptions) Match(key string) bool {
	if len(o.Suffixes) == 0 {
		return true
	}
	lower := strings.ToLower(key)
	for _, s := range o.Suffixes {
		if strings.HasSuffix(lower, strings.ToLower(s)) {
			return true
		}
	}
	return false
}
