package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order is a placed order: the priced snapshot of a cart at checkout.
type Order struct {
	ID        string
	SessionID string
	Email     string
	Items     []Item
	Subtotal  decimal.Decimal
	Discount  decimal.Decimal
	Shipping  decimal.Decimal
	Taxes     decimal.Decimal
	Total     decimal.Decimal
	PromoCode string
	CreatedAt time.Time
}

// Item is a single line of an order.
type Item struct {
	ProductID string
	Title     string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, order *Order) error
}
