package pricing

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// UnknownCodeMessage is returned for codes that do not exist or are outside
// their validity window.
const UnknownCodeMessage = "Invalid or expired authorization code."

// ShippingBasis selects which amount is compared against the free-shipping
// threshold.
type ShippingBasis string

const (
	// BasisSubtotal compares the pre-discount subtotal.
	BasisSubtotal ShippingBasis = "subtotal"
	// BasisDiscounted compares the subtotal after the promotion discount.
	BasisDiscounted ShippingBasis = "discounted"
)

// Config holds the storefront's checkout pricing constants.
type Config struct {
	FreeShippingThreshold decimal.Decimal
	ShippingFee           decimal.Decimal
	TaxRate               decimal.Decimal
	ShippingBasis         ShippingBasis
}

// DefaultConfig returns free shipping above $150, a $15 flat fee otherwise and
// 8% tax, with the threshold checked against the pre-discount subtotal.
func DefaultConfig() Config {
	return Config{
		FreeShippingThreshold: decimal.NewFromInt(150),
		ShippingFee:           decimal.NewFromInt(15),
		TaxRate:               decimal.RequireFromString("0.08"),
		ShippingBasis:         BasisSubtotal,
	}
}

// Quote is the full set of derived monetary values for one cart state.
type Quote struct {
	ItemCount int
	PromoCode string
	Subtotal  decimal.Decimal
	Discount  decimal.Decimal
	Shipping  decimal.Decimal
	Taxes     decimal.Decimal
	Total     decimal.Decimal
}

// FreeShipping reports whether the quote qualified for free shipping.
func (q Quote) FreeShipping() bool {
	return q.ItemCount > 0 && q.Shipping.IsZero()
}

// PromoResult is the outcome of a promotion code attempt. Rejections are
// results, not errors, so callers can render the message inline.
type PromoResult struct {
	Success bool
	Message string
}

// Engine derives totals and evaluates promotion eligibility. It holds no cart
// state of its own.
type Engine struct {
	cfg      Config
	registry Registry
	now      func() time.Time
}

// NewEngine creates an Engine resolving codes through registry.
func NewEngine(cfg Config, registry Registry) *Engine {
	if cfg.ShippingBasis == "" {
		cfg.ShippingBasis = BasisSubtotal
	}
	return &Engine{cfg: cfg, registry: registry, now: time.Now}
}

// Config returns the engine's pricing constants.
func (e *Engine) Config() Config {
	return e.cfg
}

// Resolve looks up code and checks it against items. A nil rule with a nil
// error means the code was rejected and result carries the reason.
func (e *Engine) Resolve(ctx context.Context, code string, items []Item) (*Rule, PromoResult, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, PromoResult{Message: UnknownCodeMessage}, nil
	}

	rule, err := e.registry.Lookup(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrUnknownCode) {
			return nil, PromoResult{Message: UnknownCodeMessage}, nil
		}
		return nil, PromoResult{}, errors.Wrap(err, "lookup promotion")
	}
	if !rule.Active(e.now()) {
		return nil, PromoResult{Message: UnknownCodeMessage}, nil
	}
	if !rule.Eligible(items) {
		return nil, PromoResult{Message: rule.IneligibleMessage()}, nil
	}

	return rule, PromoResult{Success: true, Message: rule.AppliedMessage()}, nil
}

// StillEligible reports whether an active promotion may remain applied to
// items. It is the predicate behind automatic revocation.
func (e *Engine) StillEligible(active *Rule, items []Item) bool {
	return active == nil || active.Eligible(items)
}

// Quote computes subtotal, discount, shipping, taxes and total for items with
// the active promotion (nil for none). An empty cart quotes no shipping fee.
func (e *Engine) Quote(items []Item, active *Rule) Quote {
	q := Quote{
		ItemCount: TotalQuantity(items),
		Subtotal:  Subtotal(items),
		Discount:  zero,
		Shipping:  zero,
	}

	if active != nil {
		q.PromoCode = active.Code
		if d, err := Apply(active, items); err == nil {
			q.Discount = d.Amount
		}
	}

	discounted := floorAtZero(q.Subtotal.Sub(q.Discount))

	if q.ItemCount > 0 {
		basis := q.Subtotal
		if e.cfg.ShippingBasis == BasisDiscounted {
			basis = discounted
		}
		if !basis.GreaterThan(e.cfg.FreeShippingThreshold) {
			q.Shipping = e.cfg.ShippingFee
		}
	}

	q.Taxes = discounted.Mul(e.cfg.TaxRate).Round(2)
	q.Total = floorAtZero(discounted.Add(q.Shipping).Add(q.Taxes)).Round(2)

	return q
}
