package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/tabula/internal/errs"
	"github.com/koustreak/tabula/internal/filestore"
)

type fakeObject struct {
	body     string
	modified time.Time
}

// fakeS3 answers the handful of S3 calls the driver makes.
func fakeS3(t *testing.T, bucket string, objects map[string]fakeObject) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := strings.TrimPrefix(r.URL.Path, "/")
		b, key, _ := strings.Cut(p, "/")

		if b != bucket {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method != http.MethodHead {
				fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchBucket</Code><Message>missing</Message></Error>`)
			}
			return
		}

		switch {
		case key == "" && r.Method == http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case key == "" && r.Method == http.MethodGet:
			prefix := r.URL.Query().Get("prefix")
			var sb strings.Builder
			sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
			fmt.Fprintf(&sb, `<Name>%s</Name><Prefix>%s</Prefix><MaxKeys>1000</MaxKeys><IsTruncated>false</IsTruncated>`, bucket, prefix)
			for k, o := range objects {
				if !strings.HasPrefix(k, prefix) {
					continue
				}
				fmt.Fprintf(&sb, `<Contents><Key>%s</Key><LastModified>%s</LastModified><ETag>"etag"</ETag><Size>%d</Size><StorageClass>STANDARD</StorageClass></Contents>`,
					k, o.modified.UTC().Format("2006-01-02T15:04:05.000Z"), len(o.body))
			}
			sb.WriteString(`</ListBucketResult>`)
			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprint(w, sb.String())
		default:
			o, ok := objects[key]
			if !ok {
				w.Header().Set("Content-Type", "application/xml")
				w.WriteHeader(http.StatusNotFound)
				if r.Method != http.MethodHead {
					fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
				}
				return
			}
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Header().Set("Content-Length", fmt.Sprint(len(o.body)))
			w.Header().Set("Last-Modified", o.modified.UTC().Format(http.TimeFormat))
			w.Header().Set("ETag", `"etag"`)
			if r.Method != http.MethodHead {
				fmt.Fprint(w, o.body)
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newDriver(t *testing.T, srv *httptest.Server, bucket string) (*Driver, error) {
	t.Helper()
	cfg := filestore.DefaultConfig(strings.TrimPrefix(srv.URL, "http://"), "minioadmin", "minioadmin")
	cfg.Region = "us-east-1"
	cfg.Bucket = bucket
	return New(context.Background(), cfg)
}

func TestDriver_ListAndGet(t *testing.T) {
	modified := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	srv := fakeS3(t, "databases", map[string]fakeObject{
		"exports/shop.db":   {body: "SQLite format 3", modified: modified},
		"exports/notes.txt": {body: "hello", modified: modified},
	})

	d, err := newDriver(t, srv, "databases")
	require.NoError(t, err)
	defer d.Close()

	objs, err := d.ListObjects(context.Background(), "databases", filestore.ListOptions{
		Prefix:    "exports/",
		Recursive: true,
		Suffixes:  []string{".db"},
	})
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "exports/shop.db", objs[0].Key)
	assert.Equal(t, int64(15), objs[0].Size)
	assert.True(t, modified.Equal(objs[0].LastModified))

	// An empty bucket argument falls back to the configured one.
	again, err := d.ListObjects(context.Background(), "", filestore.ListOptions{Recursive: true, Suffixes: []string{".db"}})
	require.NoError(t, err)
	assert.Equal(t, objs, again)

	obj, err := d.GetObject(context.Background(), "databases", "exports/shop.db")
	require.NoError(t, err)
	defer obj.Close()
	body, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, "SQLite format 3", string(body))
	assert.Equal(t, int64(15), obj.Info().Size)
}

func TestDriver_MissingBucket(t *testing.T) {
	srv := fakeS3(t, "databases", nil)

	_, err := newDriver(t, srv, "elsewhere")
	assert.True(t, errs.IsNotFound(err))
}

func TestDriver_MissingObject(t *testing.T) {
	srv := fakeS3(t, "databases", nil)
	d, err := newDriver(t, srv, "databases")
	require.NoError(t, err)

	_, err = d.StatObject(context.Background(), "databases", "nope.db")
	assert.True(t, errs.IsNotFound(err))
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.ErrKind
	}{
		{"no such key", miniogo.ErrorResponse{Code: "NoSuchKey"}, errs.ErrKindNotFound},
		{"forbidden", miniogo.ErrorResponse{StatusCode: http.StatusForbidden}, errs.ErrKindPermissionDenied},
		{"bad name", miniogo.ErrorResponse{Code: "InvalidBucketName"}, errs.ErrKindInvalidInput},
		{"slow down", miniogo.ErrorResponse{Code: "SlowDown"}, errs.ErrKindTimeout},
		{"deadline", context.DeadlineExceeded, errs.ErrKindTimeout},
		{"network", errors.New("connection refused"), errs.ErrKindConnectionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errs.KindOf(mapError(tt.err, "op")))
		})
	}
	assert.NoError(t, mapError(nil, "op"))
}
