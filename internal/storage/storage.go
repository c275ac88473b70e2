// Package storage defines the durable key-value port that cart and wishlist
// state is persisted through, plus the key layout shared by all adapters.
package storage

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned by Get when no record exists for a key.
var ErrNotFound = errors.New("storage: record not found")

// Store holds string-keyed records. Adapters must make Put visible to the next
// Get for the same key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Pinger is implemented by stores backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Record namespaces. They keep the names the browser storefront used.
const (
	CartNamespace     = "chor_bazzar_cart"
	WishlistNamespace = "chorbazzar_wishlist"
)

// Key builds the record key for namespace scoped to a session. An empty
// session yields the bare namespace.
func Key(namespace, session string) string {
	if session == "" {
		return namespace
	}
	return namespace + ":" + session
}
