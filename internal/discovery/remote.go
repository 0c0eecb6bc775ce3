package discovery

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/koustreak/tabula/internal/errs"
	"github.com/koustreak/tabula/internal/filestore"
)

// Remote finds database files in a bucket and downloads the chosen one
// into a local directory.
type Remote struct {
	store   filestore.Store
	bucket  string
	prefix  string
	dataDir string
}

// NewRemote returns a source over bucket/prefix in store that downloads
// into dataDir.
func NewRemote(store filestore.Store, bucket, prefix, dataDir string) *Remote {
	return &Remote{store: store, bucket: bucket, prefix: prefix, dataDir: dataDir}
}

func (r *Remote) Candidates(ctx context.Context) ([]Candidate, error) {
	objs, err := r.store.ListObjects(ctx, r.bucket, filestore.ListOptions{
		Prefix:    r.prefix,
		Recursive: true,
		Suffixes:  Extensions,
	})
	if err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(objs))
	for _, o := range objs {
		if o.IsDir {
			continue
		}
		out = append(out, Candidate{
			Name:     o.Base(),
			Location: o.Key,
			Size:     o.Size,
			Modified: o.LastModified,
		})
	}
	return out, nil
}

// Fetch downloads the named object into the data directory. The file is
// written under a temporary name and renamed into place once complete.
func (r *Remote) Fetch(ctx context.Context, name string) (string, error) {
	cands, err := r.Candidates(ctx)
	if err != nil {
		return "", err
	}
	c, err := find(cands, name)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(r.dataDir, 0o755); err != nil {
		return "", errs.Wrap(errs.ErrKindInvalidInput, "cannot create data directory", err)
	}

	obj, err := r.store.GetObject(ctx, r.bucket, c.Location)
	if err != nil {
		return "", err
	}
	defer obj.Close()

	tmp, err := os.CreateTemp(r.dataDir, ".download-*")
	if err != nil {
		return "", errs.Wrap(errs.ErrKindInvalidInput, "cannot create download file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, obj); err != nil {
		_ = tmp.Close()
		return "", errs.Wrap(errs.ErrKindConnectionFailed, "download interrupted", err)
	}
	if err := tmp.Close(); err != nil {
		return "", errs.Wrap(errs.ErrKindInvalidInput, "cannot write download file", err)
	}

	dst := filepath.Join(r.dataDir, c.Name)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", errs.Wrap(errs.ErrKindInvalidInput, "cannot move download into place", err)
	}
	return dst, nil
}
