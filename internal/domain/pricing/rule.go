package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported promotion discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage-based discount to the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed monetary discount capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
	// DiscountFreeLowest removes the cost of the cheapest unit in the cart.
	DiscountFreeLowest DiscountType = "free_lowest"
)

// Valid reports whether t is a known discount strategy.
func (t DiscountType) Valid() bool {
	switch t {
	case DiscountPercentage, DiscountFixed, DiscountFreeLowest:
		return true
	default:
		return false
	}
}

var (
	// ErrUnknownCode is returned by a Registry when no promotion matches a code.
	ErrUnknownCode = errors.New("unknown promotion code")
	// ErrNotEligible is returned by Apply when the cart does not satisfy the
	// rule's minimum item count.
	ErrNotEligible = errors.New("cart not eligible for promotion")
)

// MachSpeed20 is the storefront's launch promotion.
const MachSpeed20 = "MACH_SPEED_20"

// Rule is one row of the promotion table: a code, the predicate that keeps it
// eligible and the discount it grants.
type Rule struct {
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	// MinItems is the eligibility predicate: total quantity must be at least
	// MinItems. Zero means always eligible.
	MinItems    int
	Description string
	// MaxDiscount caps the discount amount when positive.
	MaxDiscount decimal.Decimal
	ValidFrom   *time.Time
	ValidUntil  *time.Time
}

// Eligible evaluates the rule's predicate against the cart items.
func (r *Rule) Eligible(items []Item) bool {
	return r.MinItems <= 0 || TotalQuantity(items) >= r.MinItems
}

// Active reports whether now falls inside the rule's validity window.
func (r *Rule) Active(now time.Time) bool {
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidUntil != nil && now.After(*r.ValidUntil) {
		return false
	}
	return true
}

// IneligibleMessage is shown inline when the code is known but the cart does
// not qualify.
func (r *Rule) IneligibleMessage() string {
	return fmt.Sprintf("Max Velocity not reached: %s requires %d+ items.", r.Code, r.MinItems)
}

// RevokedMessage is the notification emitted when an active promotion stops
// being eligible.
func (r *Rule) RevokedMessage() string {
	return fmt.Sprintf("Velocity Dropped: %s requires %d+ items. Discount removed.", r.Code, r.MinItems)
}

// AppliedMessage is the notification emitted when the promotion is accepted.
func (r *Rule) AppliedMessage() string {
	if r.Description == "" {
		return fmt.Sprintf("%s applied!", r.Code)
	}
	return fmt.Sprintf("%s applied: %s", r.Code, r.Description)
}

// Item represents a line item in the cart for pricing purposes.
type Item struct {
	ProductID string
	Price     decimal.Decimal
	Quantity  int
}

// NormalizeCode trims and upper-cases a user supplied promotion code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Registry provides lookup of promotion rules by their normalized code.
type Registry interface {
	Lookup(ctx context.Context, code string) (*Rule, error)
}

// Lister is implemented by registries that can enumerate their codes.
type Lister interface {
	Codes(ctx context.Context) ([]string, error)
}

// DefaultRules is the storefront's built-in promotion table.
func DefaultRules() []Rule {
	return []Rule{
		{
			Code:         MachSpeed20,
			DiscountType: DiscountPercentage,
			Value:        decimal.NewFromInt(20),
			MinItems:     3,
			Description:  "MAX VELOCITY: 20% off with 3+ items",
		},
	}
}

var (
	_ Registry = (*Table)(nil)
	_ Lister   = (*Table)(nil)
)

// Table is a static, in-memory promotion registry.
type Table struct {
	rules map[string]Rule
	codes []string
}

// NewTable builds a registry from rules. Codes are normalized; a later rule
// with the same code replaces an earlier one.
func NewTable(rules ...Rule) *Table {
	t := &Table{rules: make(map[string]Rule, len(rules))}
	for _, r := range rules {
		r.Code = NormalizeCode(r.Code)
		if _, ok := t.rules[r.Code]; !ok {
			t.codes = append(t.codes, r.Code)
		}
		t.rules[r.Code] = r
	}
	return t
}

// Lookup returns a copy of the rule for code or ErrUnknownCode.
func (t *Table) Lookup(_ context.Context, code string) (*Rule, error) {
	r, ok := t.rules[NormalizeCode(code)]
	if !ok {
		return nil, ErrUnknownCode
	}
	return &r, nil
}

// Codes returns all codes in insertion order.
func (t *Table) Codes(_ context.Context) ([]string, error) {
	out := make([]string, len(t.codes))
	copy(out, t.codes)
	return out, nil
}
