// Package blob stores cached object bytes by key. Objects are written whole
// and read back in full or as a single byte range.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrNotFound indicates the key has no stored object.
	ErrNotFound = errors.New("blob: object not found")
	// ErrInvalidKey indicates a key that cannot be mapped to storage.
	ErrInvalidKey = errors.New("blob: invalid key")
)

// Store is the storage contract used by the proxy and the eviction engine.
type Store interface {
	// Get returns the object for key. A nil rng reads the whole object.
	Get(ctx context.Context, key string, rng *Range) (*Object, error)
	// Put consumes r to completion and stores it under key, replacing any
	// previous object.
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (PutResult, error)
	// Delete removes every key. Missing keys are ignored.
	Delete(ctx context.Context, keys []string) error
}

// Pinger is implemented by stores that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Object is a readable stored object. Callers must close Body.
type Object struct {
	Body         io.ReadCloser
	Size         int64
	ETag         string
	ContentType  string
	CacheControl string
	// Span is set when a byte range was served.
	Span *Span
}

// Close releases the object body.
func (o *Object) Close() error {
	if o == nil || o.Body == nil {
		return nil
	}
	return o.Body.Close()
}

// ContentLength is the number of bytes Body will yield.
func (o *Object) ContentLength() int64 {
	if o.Span != nil {
		return o.Span.Length
	}
	return o.Size
}

// PutOptions carries the HTTP metadata persisted alongside the object.
type PutOptions struct {
	ContentType  string
	CacheControl string
}

// PutResult describes a committed object.
type PutResult struct {
	Size int64
	ETag string
}

// validateKey rejects keys that would escape the store namespace.
func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}
