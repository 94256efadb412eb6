// Package kv describes the key-value backends the profile collection is persisted in.
package kv

import (
	"context"
	"errors"
)

var ErrKeyNotFound = errors.New("key not found")

// Store gets and sets opaque JSON blobs by key. Get returns ErrKeyNotFound
// when the key has never been written.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Ping(ctx context.Context) error
	Name() string
}
