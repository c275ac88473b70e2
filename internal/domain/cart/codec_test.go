package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTrip(t *testing.T) {
	items := []LineItem{
		newLineItem(jacket, 2),
		newLineItem(prod("7", `Quote "Tee"`, "19.99"), 1),
	}

	got, err := Decode(Encode(items))
	require.NoError(t, err)
	assert.Equal(t, len(items), len(got))
	for i := range items {
		assert.Equal(t, items[i].ProductID, got[i].ProductID)
		assert.Equal(t, items[i].Title, got[i].Title)
		assert.Equal(t, items[i].Quantity, got[i].Quantity)
		assert.True(t, items[i].UnitPrice.Equal(got[i].UnitPrice))
	}
}

func TestCodec_EmptyCart(t *testing.T) {
	assert.Equal(t, "[]", string(Encode(nil)))

	got, err := Decode([]byte("[]"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCodec_LegacyRecord(t *testing.T) {
	// Numeric ids and extra snapshot fields written by the browser storefront.
	data := []byte(`[{"id":3,"title":"Stealth Cap","price":20,"image":"/c.png",` +
		`"category":"Accessories","material":"Nylon","stock":5,"rating":4.5,"quantity":2}]`)

	got, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "3", got[0].ProductID)
	assert.Equal(t, "Accessories", got[0].Category)
	assert.Equal(t, 2, got[0].Quantity)
}

func TestCodec_Rejects(t *testing.T) {
	for _, tt := range []struct {
		name string
		data string
	}{
		{name: "NotArray", data: `{"id":"1"}`},
		{name: "MissingID", data: `[{"price":1,"quantity":1}]`},
		{name: "ZeroQuantity", data: `[{"id":"1","price":1,"quantity":0}]`},
		{name: "QuantityAboveMax", data: `[{"id":"1","price":1,"quantity":1000}]`},
		{name: "NegativePrice", data: `[{"id":"1","price":-1,"quantity":1}]`},
		{name: "Duplicate", data: `[{"id":"1","price":1,"quantity":1},{"id":1,"price":1,"quantity":2}]`},
		{name: "Truncated", data: `[{"id":"1","price":1,`},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}
