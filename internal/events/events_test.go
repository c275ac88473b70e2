package events

import (
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/chorbazzar/internal/domain/order"
)

func TestEncodeOrderPlaced(t *testing.T) {
	o := &order.Order{
		ID:        "order-1",
		SessionID: "sess-1",
		Email:     "trinity@chorbazzar.dev",
		Items: []order.Item{
			{ProductID: "1", Title: "Jacket", UnitPrice: decimal.RequireFromString("50"), Quantity: 3},
		},
		Total:     decimal.RequireFromString("145.8"),
		PromoCode: "MACH_SPEED_20",
	}
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	body := EncodeOrderPlaced("evt-1", at, o)
	require.True(t, jx.Valid(body))

	fields := map[string]string{}
	var items int
	err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		switch d.Next() {
		case jx.String:
			v, err := d.Str()
			fields[key] = v
			return err
		case jx.Number:
			n, err := d.Num()
			fields[key] = n.String()
			return err
		case jx.Array:
			return d.Arr(func(d *jx.Decoder) error {
				items++
				return d.Skip()
			})
		default:
			return d.Skip()
		}
	})
	require.NoError(t, err)

	assert.Equal(t, "evt-1", fields["event_id"])
	assert.Equal(t, "OrderPlaced", fields["event_type"])
	assert.Equal(t, "2024-03-01T09:30:00Z", fields["occurred_at"])
	assert.Equal(t, "order-1", fields["order_id"])
	assert.Equal(t, "145.80", fields["total"])
	assert.Equal(t, "MACH_SPEED_20", fields["promo_code"])
	assert.Equal(t, 1, items)
}

func TestEncodeOrderPlaced_NoPromo(t *testing.T) {
	body := EncodeOrderPlaced("evt-2", time.Now(), &order.Order{ID: "o", Total: decimal.Zero})
	assert.NotContains(t, string(body), "promo_code")
	assert.Contains(t, string(body), `"items":[]`)
}
