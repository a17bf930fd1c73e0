package objstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/malbeclabs/songlake/pkg/engine"
)

// Object is a single stored file.
type Object struct {
	URI  string
	Size int64
}

// Store lists and removes objects below a URI prefix. The ETL uses it to
// give every table write overwrite semantics and to inspect written output.
type Store interface {
	List(ctx context.Context, uri string) ([]Object, error)
	DeletePrefix(ctx context.Context, uri string) (int, error)
}

// Router dispatches to the S3 store for s3:// URIs and to the local store
// for everything else.
type Router struct {
	S3    Store
	Local Store
}

func (r *Router) pick(uri string) (Store, error) {
	if engine.IsS3(uri) {
		if r.S3 == nil {
			return nil, fmt.Errorf("S3 store is not configured for %s", engine.RedactedURI(uri))
		}
		return r.S3, nil
	}
	if r.Local == nil {
		return nil, fmt.Errorf("local store is not configured for %s", uri)
	}
	return r.Local, nil
}

func (r *Router) List(ctx context.Context, uri string) ([]Object, error) {
	s, err := r.pick(uri)
	if err != nil {
		return nil, err
	}
	return s.List(ctx, uri)
}

func (r *Router) DeletePrefix(ctx context.Context, uri string) (int, error) {
	s, err := r.pick(uri)
	if err != nil {
		return 0, err
	}
	return s.DeletePrefix(ctx, uri)
}

// New returns a Router with a local store and, when s3Cfg is non-nil, an S3
// store built from it.
func New(ctx context.Context, log *slog.Logger, s3Cfg *engine.S3Config) (*Router, error) {
	r := &Router{Local: NewLocal()}
	if s3Cfg != nil {
		s3Store, err := NewS3(ctx, log, s3Cfg)
		if err != nil {
			return nil, err
		}
		r.S3 = s3Store
	}
	return r, nil
}

// Close releases the S3 store's worker pool, if any.
func (r *Router) Close() {
	if c, ok := r.S3.(interface{ Close() }); ok {
		c.Close()
	}
}

// EnsureBucket creates the bucket of an s3:// output root on a localhost
// MinIO endpoint. Local paths and AWS endpoints are left alone.
func (r *Router) EnsureBucket(ctx context.Context, cfg *engine.S3Config, uri string) error {
	if cfg == nil || !engine.IsS3(uri) {
		return nil
	}
	s3Store, ok := r.S3.(*S3)
	if !ok {
		return nil
	}
	return s3Store.EnsureBucket(ctx, cfg, uri)
}
