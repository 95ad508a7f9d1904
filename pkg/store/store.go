// Package store persists encoded BINN documents by key. Implementations
// include an in-memory store (for dev/testing), an etcd-backed store and a
// PostgreSQL-backed store.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/strand-protocol/binn/pkg/config"
)

// MaxKeyLen bounds document keys.
const MaxKeyLen = 255

var (
	ErrNotFound      = errors.New("store: document not found")
	ErrAlreadyExists = errors.New("store: document already exists")
	ErrInvalidKey    = errors.New("store: invalid key")
)

// Store holds documents as opaque encoded bytes. Callers validate documents
// before storing them; the store only checks keys.
type Store interface {
	// Put writes doc at key, replacing any existing document.
	Put(ctx context.Context, key string, doc []byte) error
	// Create writes doc at key, failing with ErrAlreadyExists if key is taken.
	Create(ctx context.Context, key string, doc []byte) error
	// Get returns the document at key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes the document at key or returns ErrNotFound.
	Delete(ctx context.Context, key string) error
	// List returns up to limit keys starting with prefix in ascending order.
	// A limit of zero or less means no limit.
	List(ctx context.Context, prefix string, limit int) ([]string, error)
	Close() error
}

// ValidateKey rejects empty, oversized, non-UTF-8 and NUL-bearing keys.
func ValidateKey(key string) error {
	switch {
	case key == "":
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	case len(key) > MaxKeyLen:
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidKey, len(key), MaxKeyLen)
	case !utf8.ValidString(key):
		return fmt.Errorf("%w: not valid UTF-8", ErrInvalidKey)
	case strings.ContainsRune(key, 0):
		return fmt.Errorf("%w: contains NUL", ErrInvalidKey)
	}
	return nil
}

// Open returns the backend cfg selects.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Type {
	case "", config.StoreMemory:
		return NewMemoryStore(), nil
	case config.StoreEtcd:
		return NewEtcdStore(cfg.Etcd, logger)
	case config.StorePostgres:
		return NewPostgresStore(ctx, cfg.Postgres, logger)
	}
	return nil, fmt.Errorf("store: unsupported type %q (supported: memory, etcd, postgres)", cfg.Type)
}
