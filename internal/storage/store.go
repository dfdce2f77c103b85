// Package storage abstracts where document bytes live. Two backends are
// provided: the local filesystem and S3-compatible object storage.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when a key has no stored object.
var ErrNotFound = errors.New("object not found")

// Store reads and writes document payloads by key.
type Store interface {
	// Name identifies the backend ("local" or "s3").
	Name() string

	// Put stores the payload under key, overwriting any existing object.
	Put(ctx context.Context, key string, contentType string, body io.Reader) error

	// Get opens the object for reading. The caller must close it.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// URLSigner is implemented by backends that can hand out direct download
// URLs, letting the API redirect instead of proxying bytes.
type URLSigner interface {
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}
