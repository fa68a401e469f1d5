// Package blob provides the key-value document store that mirrors in-memory state.
package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound indicates the key has never been written.
var ErrNotFound = errors.New("blob: key not found")

// Store persists opaque documents under string keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// LoadJSON decodes the document at key into dest. A missing key leaves dest untouched.
func LoadJSON(ctx context.Context, store Store, key string, dest any) error {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("blob: get %s: %w", key, err)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("blob: decode %s: %w", key, err)
	}
	return nil
}

// SaveJSON encodes value and writes it at key.
func SaveJSON(ctx context.Context, store Store, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("blob: encode %s: %w", key, err)
	}
	if err := store.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("blob: put %s: %w", key, err)
	}
	return nil
}

// Key joins a namespace prefix and a collection name.
func Key(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + ":" + name
}
