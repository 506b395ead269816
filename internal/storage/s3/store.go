// Package s3 wraps the object-storage operations the ingestion core needs.
package s3

import (
	"context"
	"io"
	"time"
)

// ObjectInfo is one entry from a bucket listing.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified *time.Time
}

// ObjectMeta is head metadata used to corroborate listing data before
// fingerprinting.
type ObjectMeta struct {
	ContentLength int64
	LastModified  *time.Time
}

// Factory builds an object store for one bucket binding. Split out so tests
// can swap in a fake without touching AWS config loading.
type Factory func(ctx context.Context, cfg ClientConfig) (ObjectStore, error)

// ObjectStore is the object-storage surface consumed by the poller and the
// ingestion pipeline.
type ObjectStore interface {
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	Head(ctx context.Context, bucket, key string) (ObjectMeta, error)
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}
