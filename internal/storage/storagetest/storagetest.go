// Package storagetest holds the conformance suite every storage.Store adapter
// must pass.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/chorbazzar/internal/storage"
)

// Run exercises s with the behaviour the cart and wishlist stores rely on.
func Run(t *testing.T, s storage.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, err := s.Get(ctx, storage.Key(storage.CartNamespace, "absent"))
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("put then get", func(t *testing.T) {
		key := storage.Key(storage.CartNamespace, "s1")
		require.NoError(t, s.Put(ctx, key, []byte(`[{"id":"1"}]`)))

		got, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, `[{"id":"1"}]`, string(got))
	})

	t.Run("put replaces", func(t *testing.T) {
		key := storage.Key(storage.WishlistNamespace, "s1")
		require.NoError(t, s.Put(ctx, key, []byte(`[1]`)))
		require.NoError(t, s.Put(ctx, key, []byte(`[]`)))

		got, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, `[]`, string(got))
	})

	t.Run("namespaces are independent", func(t *testing.T) {
		cartKey := storage.Key(storage.CartNamespace, "s2")
		wishKey := storage.Key(storage.WishlistNamespace, "s2")
		require.NoError(t, s.Put(ctx, cartKey, []byte(`"cart"`)))

		_, err := s.Get(ctx, wishKey)
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	if p, ok := s.(storage.Pinger); ok {
		t.Run("ping", func(t *testing.T) {
			require.NoError(t, p.Ping(ctx))
		})
	}
}
