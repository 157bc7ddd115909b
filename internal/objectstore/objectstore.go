// Package objectstore abstracts the object storage the job reads raw data
// from and writes the clean zone to. Locations are URLs: s3://bucket/prefix/
// for S3, and file:///dir or a bare path for the local filesystem.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
)

// Bucket is a flat key space of objects.
type Bucket interface {
	// List returns the keys under prefix in lexical order. Directory
	// placeholders and hidden/marker objects (leading "_" or ".") are skipped.
	List(ctx context.Context, prefix string) ([]string, error)
	// Open returns a reader for key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Put stores r under key, replacing any existing object.
	Put(ctx context.Context, key string, r io.Reader) error
}

// Location is a parsed object-storage URL.
type Location struct {
	Scheme string // "s3" or "file"
	Bucket string // S3 bucket name, or the root directory for "file"
	Prefix string // key prefix inside the bucket; "" or ends with "/"
}

// String renders the location back to URL form.
func (l Location) String() string {
	if l.Scheme == "file" {
		return "file://" + l.Bucket
	}
	return fmt.Sprintf("%s://%s/%s", l.Scheme, l.Bucket, l.Prefix)
}

// ParseURL splits raw into scheme, bucket and prefix.
func ParseURL(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, fmt.Errorf("objectstore: empty location")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("objectstore: parse %q: %w", raw, err)
	}
	switch u.Scheme {
	case "s3", "s3a":
		if u.Host == "" {
			return Location{}, fmt.Errorf("objectstore: %q has no bucket", raw)
		}
		prefix := strings.TrimPrefix(u.Path, "/")
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		return Location{Scheme: "s3", Bucket: u.Host, Prefix: prefix}, nil
	case "file":
		return Location{Scheme: "file", Bucket: path.Clean(u.Path)}, nil
	case "":
		return Location{Scheme: "file", Bucket: path.Clean(raw)}, nil
	default:
		return Location{}, fmt.Errorf("objectstore: unsupported scheme %q", u.Scheme)
	}
}

// Opener builds a Bucket for a parsed location. It is a seam for tests.
type Opener func(ctx context.Context, loc Location) (Bucket, error)

// Open resolves raw to a Bucket and the key prefix to use inside it.
func Open(ctx context.Context, raw string) (Bucket, string, error) {
	return OpenWith(ctx, raw, DefaultOpener)
}

// OpenWith is Open with an explicit Opener.
func OpenWith(ctx context.Context, raw string, open Opener) (Bucket, string, error) {
	loc, err := ParseURL(raw)
	if err != nil {
		return nil, "", err
	}
	b, err := open(ctx, loc)
	if err != nil {
		return nil, "", err
	}
	return b, loc.Prefix, nil
}

// DefaultOpener opens S3 buckets with the default AWS credential chain and
// local directories as FSBucket.
func DefaultOpener(ctx context.Context, loc Location) (Bucket, error) {
	switch loc.Scheme {
	case "s3":
		return NewS3Bucket(ctx, loc.Bucket)
	case "file":
		return NewFSBucket(loc.Bucket)
	default:
		return nil, fmt.Errorf("objectstore: unsupported scheme %q", loc.Scheme)
	}
}

// hidden reports whether key, below the directory part of prefix, has a
// segment Spark-style writers and readers ignore (_SUCCESS, .crc,
// _temporary/, .staging/, ...). Segments of the prefix itself never count.
func hidden(key, prefix string) bool {
	dir := prefix[:strings.LastIndex(prefix, "/")+1]
	for _, seg := range strings.Split(strings.TrimPrefix(key, dir), "/") {
		if strings.HasPrefix(seg, "_") || strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
