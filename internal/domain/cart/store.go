package cart

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/chorbazzar/internal/domain/pricing"
	"github.com/xenking/chorbazzar/internal/domain/product"
	"github.com/xenking/chorbazzar/internal/notify"
	"github.com/xenking/chorbazzar/internal/storage"
)

// Options configures a Store.
type Options struct {
	// Storage receives the line items after every mutation.
	Storage storage.Store
	// Key is the record key, usually storage.Key(storage.CartNamespace, session).
	Key string

	Engine   *pricing.Engine
	Notifier notify.Notifier
	Logger   *zap.Logger
	Meter    metric.Meter
}

func (o *Options) setDefaults() {
	if o.Key == "" {
		o.Key = storage.CartNamespace
	}
	if o.Engine == nil {
		o.Engine = pricing.NewEngine(pricing.DefaultConfig(), pricing.NewTable(pricing.DefaultRules()...))
	}
	if o.Notifier == nil {
		o.Notifier = notify.Discard
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Meter == nil {
		o.Meter = noop.NewMeterProvider().Meter("")
	}
}

// Store owns one cart. It is safe for concurrent use; every mutation and the
// recomputation it triggers happen as one step under the store lock.
type Store struct {
	storage  storage.Store
	key      string
	engine   *pricing.Engine
	notifier notify.Notifier
	lg       *zap.Logger

	mutations   metric.Int64Counter
	revocations metric.Int64Counter

	mu    sync.Mutex
	items []LineItem
	promo *pricing.Rule
	quote pricing.Quote
}

// NewStore creates a Store and loads its line items from storage. A missing,
// unreadable or malformed record starts an empty cart; the failure is logged.
func NewStore(ctx context.Context, opts Options) (*Store, error) {
	opts.setDefaults()

	mutations, err := opts.Meter.Int64Counter("cart.mutations",
		metric.WithDescription("Cart mutations by operation"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create mutations counter")
	}
	revocations, err := opts.Meter.Int64Counter("cart.promotion.revocations",
		metric.WithDescription("Promotions removed because the cart stopped qualifying"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create revocations counter")
	}

	s := &Store{
		storage:     opts.Storage,
		key:         opts.Key,
		engine:      opts.Engine,
		notifier:    opts.Notifier,
		lg:          opts.Logger.With(zap.String("cart", opts.Key)),
		mutations:   mutations,
		revocations: revocations,
	}
	s.items = s.load(ctx)
	s.quote = s.engine.Quote(pricingItems(s.items), nil)

	return s, nil
}

func (s *Store) load(ctx context.Context) []LineItem {
	if s.storage == nil {
		return nil
	}
	data, err := s.storage.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		s.lg.Warn("Failed to load cart, starting empty", zap.Error(err))
		return nil
	}
	items, err := Decode(data)
	if err != nil {
		s.lg.Warn("Discarding malformed cart record", zap.Error(err))
		return nil
	}
	return items
}

// change collects the side effects of one mutation. They are delivered after
// the store lock is released.
type change struct {
	notes   []string
	revoked bool
}

func (c *change) note(msg string) {
	c.notes = append(c.notes, msg)
}

// mutate runs fn under the lock. When fn reports that the line items changed,
// onCartChanged runs before the lock is released.
func (s *Store) mutate(ctx context.Context, op string, fn func(c *change) bool) {
	var c change

	s.mu.Lock()
	changed := fn(&c)
	if changed {
		s.onCartChanged(ctx, &c)
	}
	s.mu.Unlock()

	if changed {
		s.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	}
	if c.revoked {
		s.revocations.Add(ctx, 1)
	}
	for _, msg := range c.notes {
		s.notifier.Notify(msg)
	}
}

// onCartChanged is the single hook run after every line item mutation: it
// revokes an active promotion the cart no longer qualifies for, recomputes
// the quote and persists the items. Callers must hold s.mu.
func (s *Store) onCartChanged(ctx context.Context, c *change) {
	items := pricingItems(s.items)

	if !s.engine.StillEligible(s.promo, items) {
		s.lg.Info("Promotion revoked",
			zap.String("code", s.promo.Code),
			zap.Int("item_count", pricing.TotalQuantity(items)),
		)
		c.note(s.promo.RevokedMessage())
		c.revoked = true
		s.promo = nil
	}

	s.quote = s.engine.Quote(items, s.promo)
	s.persist(ctx)
}

// persist writes the line items. Failures are logged and the in-memory state
// stays authoritative.
func (s *Store) persist(ctx context.Context) {
	if s.storage == nil {
		return
	}
	if err := s.storage.Put(ctx, s.key, Encode(s.items)); err != nil {
		s.lg.Error("Failed to persist cart", zap.Error(err))
	}
}

func (s *Store) indexOf(productID string) int {
	return slices.IndexFunc(s.items, func(li LineItem) bool {
		return li.ProductID == productID
	})
}

// AddToCart adds qty units of p, incrementing the existing line item if the
// product is already in the cart.
func (s *Store) AddToCart(ctx context.Context, p product.Product, qty int) error {
	if err := validateAdd(p, qty); err != nil {
		return err
	}

	var err error
	s.mutate(ctx, "add", func(c *change) bool {
		if i := s.indexOf(p.ID); i >= 0 {
			if s.items[i].Quantity > MaxQuantity-qty {
				err = &ValidationError{
					Field:  "quantity",
					Reason: fmt.Sprintf("line total would exceed %d", MaxQuantity),
				}
				return false
			}
			s.items[i].Quantity += qty
		} else {
			s.items = append(s.items, newLineItem(p, qty))
		}
		c.note(fmt.Sprintf(msgAdded, p.Title))
		return true
	})
	return err
}

// RemoveFromCart removes the line item for productID. Absent ids are ignored.
func (s *Store) RemoveFromCart(ctx context.Context, productID string) {
	s.mutate(ctx, "remove", func(c *change) bool {
		i := s.indexOf(productID)
		if i < 0 {
			return false
		}
		s.items = slices.Delete(s.items, i, i+1)
		c.note(msgRemoved)
		return true
	})
}

// UpdateQuantity sets the quantity of productID. Quantities outside
// [1, MaxQuantity] and absent ids are ignored.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, qty int) {
	if qty < 1 || qty > MaxQuantity {
		return
	}
	s.mutate(ctx, "update", func(*change) bool {
		i := s.indexOf(productID)
		if i < 0 || s.items[i].Quantity == qty {
			return false
		}
		s.items[i].Quantity = qty
		return true
	})
}

// ClearCart empties the cart and drops the active promotion without a
// revocation notice.
func (s *Store) ClearCart(ctx context.Context) {
	s.mutate(ctx, "clear", func(*change) bool {
		s.items = nil
		s.promo = nil
		return true
	})
}

// ApplyPromoCode activates the promotion named by code, replacing any active
// one. Rejections are reported through the result; the error is reserved for
// registry failures.
func (s *Store) ApplyPromoCode(ctx context.Context, code string) (pricing.PromoResult, error) {
	s.mu.Lock()
	items := pricingItems(s.items)
	s.mu.Unlock()

	rule, res, err := s.engine.Resolve(ctx, code, items)
	if err != nil || rule == nil {
		return res, err
	}

	s.mu.Lock()
	// The cart may have changed while the registry was consulted.
	if current := pricingItems(s.items); !rule.Eligible(current) {
		s.mu.Unlock()
		return pricing.PromoResult{Message: rule.IneligibleMessage()}, nil
	}
	s.promo = rule
	s.quote = s.engine.Quote(pricingItems(s.items), s.promo)
	s.mu.Unlock()

	s.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "apply_promo")))
	s.lg.Info("Promotion applied", zap.String("code", rule.Code))
	s.notifier.Notify(rule.AppliedMessage())

	return res, nil
}

// RemovePromoCode drops the active promotion.
func (s *Store) RemovePromoCode(ctx context.Context) {
	s.mu.Lock()
	s.promo = nil
	s.quote = s.engine.Quote(pricingItems(s.items), nil)
	s.mu.Unlock()

	s.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "remove_promo")))
	s.notifier.Notify(msgPromoRemoved)
}

// Items returns a copy of the line items in insertion order.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

// Quote returns the totals of the current state.
func (s *Store) Quote() pricing.Quote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quote
}

// Snapshot returns the items and totals of one state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Items: slices.Clone(s.items), Quote: s.quote}
}

// ItemCount is the sum of quantities.
func (s *Store) ItemCount() int { return s.Quote().ItemCount }

// Subtotal is the sum of unit price × quantity.
func (s *Store) Subtotal() decimal.Decimal { return s.Quote().Subtotal }

// DiscountAmount is the active promotion's discount, zero without one.
func (s *Store) DiscountAmount() decimal.Decimal { return s.Quote().Discount }

// Total is the final amount including shipping and taxes.
func (s *Store) Total() decimal.Decimal { return s.Quote().Total }

// PromoCode returns the active promotion code, or "" when none is active.
func (s *Store) PromoCode() string { return s.Quote().PromoCode }
