package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "chor_bazzar_cart", Key(CartNamespace, ""))
	assert.Equal(t, "chor_bazzar_cart:abc", Key(CartNamespace, "abc"))
	assert.Equal(t, "chorbazzar_wishlist:abc", Key(WishlistNamespace, "abc"))
}
