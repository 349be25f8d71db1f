package storage

import (
	"context"
	"io"
)

// Store is durable byte storage for upload artifacts, addressed by object key.
// Keys are derived from the pipeline generation id so concurrent uploads never
// collide.
type Store interface {
	// Save writes the object, replacing any existing bytes at key.
	Save(ctx context.Context, key string, contentType string, src io.Reader) error
	// Open streams the object back. Implementations return ErrNotExist-style
	// errors from their backends unchanged; callers map them.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
	// URL returns the externally usable locator recorded in upload metadata.
	URL(key string) string
}

// Pinger exposes the health-check surface shared by store backends.
type Pinger interface {
	Ping(ctx context.Context) error
}
