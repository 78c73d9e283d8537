package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when a key does not exist in the backend.
var ErrObjectNotFound = errors.New("storage: object not found")

// Object is a readable stored document. Backends that serve files from elsewhere
// set RedirectURL instead of Body.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
	RedirectURL string
}

// ObjectStore is the contract shared by the local and S3 backends.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Get(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
}
