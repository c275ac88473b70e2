// Package cart implements the per-session shopping cart: line items, the
// active promotion and the durable record they are persisted to.
package cart

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xenking/chorbazzar/internal/domain/pricing"
	"github.com/xenking/chorbazzar/internal/domain/product"
)

// Notification texts emitted by the store.
const (
	msgAdded        = "Added %s to cart"
	msgRemoved      = "Item removed from cart"
	msgPromoRemoved = "Promo code removed."
)

// MaxQuantity is the largest quantity a single line item may hold.
const MaxQuantity = 999

// LineItem is one distinct product held in the cart. UnitPrice and the
// display fields are captured when the product is first added.
type LineItem struct {
	ProductID string
	Title     string
	Image     string
	Category  string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Total returns UnitPrice × Quantity.
func (li LineItem) Total() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

func newLineItem(p product.Product, qty int) LineItem {
	return LineItem{
		ProductID: p.ID,
		Title:     p.Title,
		Image:     p.Image,
		Category:  p.Category,
		UnitPrice: p.Price,
		Quantity:  qty,
	}
}

// ValidationError reports malformed input to a mutating operation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func validateAdd(p product.Product, qty int) error {
	switch {
	case p.ID == "":
		return &ValidationError{Field: "product id", Reason: "must not be empty"}
	case p.Price.IsNegative():
		return &ValidationError{Field: "price", Reason: "must not be negative"}
	case qty < 1:
		return &ValidationError{Field: "quantity", Reason: "must be at least 1"}
	case qty > MaxQuantity:
		return &ValidationError{Field: "quantity", Reason: fmt.Sprintf("must be at most %d", MaxQuantity)}
	}
	return nil
}

// Snapshot is a consistent view of the cart taken under a single lock.
type Snapshot struct {
	Items []LineItem
	Quote pricing.Quote
}

func pricingItems(items []LineItem) []pricing.Item {
	out := make([]pricing.Item, len(items))
	for i, li := range items {
		out[i] = pricing.Item{
			ProductID: li.ProductID,
			Price:     li.UnitPrice,
			Quantity:  li.Quantity,
		}
	}
	return out
}
