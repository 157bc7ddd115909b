package objectstore

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FSBucket stores objects as files under a root directory; keys use "/"
// separators regardless of platform.
type FSBucket struct {
	root string
}

var _ Bucket = (*FSBucket)(nil)

// NewFSBucket returns a bucket rooted at dir. The directory is not created
// here: List fails while it is missing and Put creates it on first write.
func NewFSBucket(dir string) (*FSBucket, error) {
	if dir == "" {
		return nil, fmt.Errorf("objectstore: empty directory")
	}
	return &FSBucket{root: dir}, nil
}

// Root returns the bucket directory.
func (b *FSBucket) Root() string { return b.root }

// List implements Bucket.
func (b *FSBucket) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(b.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(b.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) && !hidden(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: list %s: %w", b.root, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Open implements Bucket.
func (b *FSBucket) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(b.path(key))
	if err != nil {
		return nil, fmt.Errorf("objectstore: open %s: %w", key, err)
	}
	return f, nil
}

// Put implements Bucket. The object is written to a temporary file first and
// renamed into place so readers never observe a partial object.
func (b *FSBucket) Put(ctx context.Context, key string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst := b.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("objectstore: mkdir for %s: %w", key, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".put-*")
	if err != nil {
		return fmt.Errorf("objectstore: create %s: %w", key, err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("objectstore: write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("objectstore: close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("objectstore: rename %s: %w", key, err)
	}
	return nil
}

func (b *FSBucket) path(key string) string {
	return filepath.Join(b.root, filepath.FromSlash(key))
}
