package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound   = errors.New("object not found in store")
	ErrInvalidKey = errors.New("invalid object key")
)

// Store is the landing zone for raw and split pipeline artifacts. Keys are
// `/`-separated paths; List matches by prefix and returns keys sorted.
type Store interface {
	Save(ctx context.Context, key string, data []byte) error

	Load(ctx context.Context, key string) ([]byte, error)

	List(ctx context.Context, prefix string) ([]string, error)

	Delete(ctx context.Context, key string) error
}
