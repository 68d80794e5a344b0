package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"mediagateway/internal/model"
)

// Package storage contains the object store abstraction used by the gateway and
// its S3-compatible implementation. Implementations stream; nothing is buffered here.

// ErrObjectNotFound is returned when the key does not exist in the bucket.
var ErrObjectNotFound = errors.New("object not found")

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set to -1 and the implementation
// will buffer/chunk as supported by the backend.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
}

// ByteRange is an inclusive byte interval.
type ByteRange struct {
	Start int64
	End   int64
}

// Storage is the object store client. Implementations must be safe for concurrent
// use by many simultaneous transfers.
type Storage interface {
	// Head returns the object's size and content type.
	Head(ctx context.Context, key string) (model.ObjectMetadata, error)
	// GetRange opens a stream over the object, or over rng when it is non-nil.
	// The read is issued before GetRange returns; cancelling ctx aborts the stream.
	GetRange(ctx context.Context, key string, rng *ByteRange) (io.ReadCloser, error)
	// Put uploads an object under the given key using the provided reader and options.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Delete removes an object by key.
	Delete(ctx context.Context, key string) error
	// Ping checks that the bucket is reachable.
	Ping(ctx context.Context) error
}
