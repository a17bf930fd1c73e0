package objstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/malbeclabs/songlake/pkg/engine"
)

// Local is a Store over the local filesystem.
type Local struct{}

func NewLocal() *Local {
	return &Local{}
}

// List walks the directory tree under uri. A missing directory is empty.
func (l *Local) List(ctx context.Context, uri string) ([]Object, error) {
	root := engine.NormalizeURI(uri)
	var objects []Object
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == root {
				return fs.SkipAll
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, Object{URI: path, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", root, err)
	}
	return objects, nil
}

// DeletePrefix removes the directory tree under uri and returns the number
// of files removed.
func (l *Local) DeletePrefix(ctx context.Context, uri string) (int, error) {
	objects, err := l.List(ctx, uri)
	if err != nil {
		return 0, err
	}
	if err := os.RemoveAll(engine.NormalizeURI(uri)); err != nil {
		return 0, fmt.Errorf("failed to remove %s: %w", uri, err)
	}
	return len(objects), nil
}
