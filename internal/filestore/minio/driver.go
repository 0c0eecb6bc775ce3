// Package minio implements filestore.Store on the MinIO SDK, used to pull
// uploaded SQLite targets out of an S3-compatible bucket.
package minio

import (
	"context"
	"fmt"
	"io"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/koustreak/tabula/internal/errs"
	"github.com/koustreak/tabula/internal/filestore"
)

// Driver is safe for concurrent use.
type Driver struct {
	client *miniogo.Client
	bucket string
}

// New builds a client for cfg and verifies the endpoint answers.
// With cfg.Bucket set the bucket must already exist.
func New(ctx context.Context, cfg *filestore.Config) (*Driver, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "create minio client", err)
	}

	d := &Driver{client: client, bucket: cfg.Bucket}
	if err := d.Ping(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// bucketOr returns bucket, or the configured bucket when it is empty.
func (d *Driver) bucketOr(bucket string) string {
	if bucket == "" {
		return d.bucket
	}
	return bucket
}

func (d *Driver) Ping(ctx context.Context) error {
	if d.bucket == "" {
		_, err := d.client.ListBuckets(ctx)
		return mapError(err, "ping")
	}

	ok, err := d.client.BucketExists(ctx, d.bucket)
	switch {
	case err != nil:
		return mapError(err, "ping")
	case !ok:
		return errs.New(errs.ErrKindNotFound, fmt.Sprintf("bucket %q does not exist", d.bucket))
	}
	return nil
}

// Close is a no-op; the SDK keeps no long-lived connections of its own.
func (d *Driver) Close() error { return nil }

// ListObjects walks bucket under opts.Prefix. Prefix entries are returned
// as directories; plain objects must pass opts.Match.
func (d *Driver) ListObjects(ctx context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	// Cancelling stops the SDK's listing goroutine when we break early.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var out []filestore.ObjectInfo
	ch := d.client.ListObjects(ctx, d.bucketOr(bucket), miniogo.ListObjectsOptions{
		Prefix:    opts.Prefix,
		Recursive: opts.Recursive,
	})
	for obj := range ch {
		if obj.Err != nil {
			return nil, mapError(obj.Err, "list objects")
		}

		info := objectInfo(obj)
		if !info.IsDir && !opts.Match(info.Key) {
			continue
		}
		out = append(out, info)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

// GetObject streams key from bucket. The caller closes the result.
func (d *Driver) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	obj, err := d.client.GetObject(ctx, d.bucketOr(bucket), key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "get "+key)
	}

	// GetObject is lazy; Stat forces the request so a missing key fails here.
	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, mapError(err, "get "+key)
	}
	info := objectInfo(stat)
	info.Key = key
	return &object{ReadCloser: obj, info: &info}, nil
}

func (d *Driver) StatObject(ctx context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	stat, err := d.client.StatObject(ctx, d.bucketOr(bucket), key, miniogo.StatObjectOptions{})
	if err != nil {
		return nil, mapError(err, "stat "+key)
	}
	info := objectInfo(stat)
	return &info, nil
}

func objectInfo(o miniogo.ObjectInfo) filestore.ObjectInfo {
	return filestore.ObjectInfo{
		Key:          o.Key,
		Size:         o.Size,
		ContentType:  o.ContentType,
		ETag:         o.ETag,
		LastModified: o.LastModified,
		IsDir:        strings.HasSuffix(o.Key, "/"),
	}
}

type object struct {
	io.ReadCloser
	info *filestore.ObjectInfo
}

func (o *object) Info() *filestore.ObjectInfo { return o.info }
