// Package metadata is a small key/value table for facts about the local
// database itself, such as the device id it was created for.
package metadata

import "context"

type Repository interface {
	// Get returns nil, nil when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
}
