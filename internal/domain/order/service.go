package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/chorbazzar/internal/domain/cart"
	"github.com/xenking/chorbazzar/internal/domain/pricing"
	"github.com/xenking/chorbazzar/internal/domain/product"
)

// ErrEmptyCart is returned when checkout is attempted with nothing in the cart.
var ErrEmptyCart = errors.New("cart is empty")

// ErrPaymentDeclined is returned by a Payment that refuses the charge.
var ErrPaymentDeclined = errors.New("payment declined")

// ErrUnavailable is returned when a product in the cart has left the catalog
// or sold out since it was added.
var ErrUnavailable = errors.New("product unavailable")

// CheckoutRequest carries the shipping details collected at checkout.
type CheckoutRequest struct {
	SessionID string
	Email     string `validate:"required,email"`
	FirstName string `validate:"required,max=100"`
	LastName  string `validate:"required,max=100"`
	Address   string `validate:"required,max=200"`
	City      string `validate:"required,max=100"`
	Zip       string `validate:"required,alphanum,min=3,max=10"`
}

// Cart is the part of the cart store checkout depends on.
type Cart interface {
	Snapshot() cart.Snapshot
	ClearCart(ctx context.Context)
}

// Catalog re-reads the products being checked out.
type Catalog interface {
	GetByIDs(ctx context.Context, ids []string) ([]product.Product, error)
}

// Payment authorizes a charge for a quote.
type Payment interface {
	Authorize(ctx context.Context, email string, q pricing.Quote) error
}

// SimulatedPayment accepts every charge after Delay.
type SimulatedPayment struct {
	Delay time.Duration
}

// Authorize waits for Delay or until ctx is done.
func (p SimulatedPayment) Authorize(ctx context.Context, _ string, _ pricing.Quote) error {
	if p.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.Delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Publisher announces placed orders.
type Publisher interface {
	PublishOrderPlaced(ctx context.Context, o *Order) error
}

// Service runs checkout: it prices the cart, charges it, records the order
// and empties the cart.
type Service struct {
	catalog   Catalog
	payment   Payment
	orders    Repository
	publisher Publisher
	validate  *validator.Validate
	now       func() time.Time
}

// NewService creates a Service. A nil publisher disables order events.
func NewService(catalog Catalog, payment Payment, orders Repository, publisher Publisher) *Service {
	return &Service{
		catalog:   catalog,
		payment:   payment,
		orders:    orders,
		publisher: publisher,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		now:       time.Now,
	}
}

// Validate checks req and returns validator.ValidationErrors on failure.
func (s *Service) Validate(req CheckoutRequest) error {
	return s.validate.Struct(req)
}

// Checkout places an order for everything in c. Every product must still be
// in stock. The cart is cleared only after payment succeeded and the order
// was stored.
func (s *Service) Checkout(ctx context.Context, c Cart, req CheckoutRequest) (*Order, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}

	snap := c.Snapshot()
	if len(snap.Items) == 0 {
		return nil, ErrEmptyCart
	}
	if err := s.checkStock(ctx, snap.Items); err != nil {
		return nil, err
	}

	if err := s.payment.Authorize(ctx, req.Email, snap.Quote); err != nil {
		return nil, errors.Wrap(err, "authorize payment")
	}

	o := newOrder(req, snap, s.now())
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	lg := zctx.From(ctx).With(zap.String("order_id", o.ID))
	if s.publisher != nil {
		if err := s.publisher.PublishOrderPlaced(ctx, o); err != nil {
			lg.Error("Failed to publish order placed", zap.Error(err))
		}
	}

	c.ClearCart(ctx)
	lg.Info("Order placed",
		zap.Int("items", snap.Quote.ItemCount),
		zap.String("total", o.Total.StringFixed(2)),
	)

	return o, nil
}

func (s *Service) checkStock(ctx context.Context, items []cart.LineItem) error {
	ids := make([]string, len(items))
	for i, li := range items {
		ids[i] = li.ProductID
	}
	products, err := s.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "load products")
	}

	inStock := make(map[string]bool, len(products))
	for _, p := range products {
		inStock[p.ID] = p.InStock()
	}
	for _, li := range items {
		if !inStock[li.ProductID] {
			return errors.Wrap(ErrUnavailable, li.Title)
		}
	}
	return nil
}

func newOrder(req CheckoutRequest, snap cart.Snapshot, now time.Time) *Order {
	items := make([]Item, len(snap.Items))
	for i, li := range snap.Items {
		items[i] = Item{
			ProductID: li.ProductID,
			Title:     li.Title,
			UnitPrice: li.UnitPrice,
			Quantity:  li.Quantity,
		}
	}
	q := snap.Quote
	return &Order{
		ID:        uuid.New().String(),
		SessionID: req.SessionID,
		Email:     req.Email,
		Items:     items,
		Subtotal:  q.Subtotal,
		Discount:  q.Discount,
		Shipping:  q.Shipping,
		Taxes:     q.Taxes,
		Total:     q.Total,
		PromoCode: q.PromoCode,
		CreatedAt: now.UTC(),
	}
}
