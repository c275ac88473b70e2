package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/chorbazzar/internal/domain/cart"
	"github.com/xenking/chorbazzar/internal/domain/pricing"
	"github.com/xenking/chorbazzar/internal/domain/product"
	"github.com/xenking/chorbazzar/internal/storage/memory"
)

// --- Mock implementations ---

type mockPayment struct {
	calls int
	err   error
}

func (m *mockPayment) Authorize(context.Context, string, pricing.Quote) error {
	m.calls++
	return m.err
}

type mockOrderRepo struct {
	lastOrder *Order
	err       error
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	m.lastOrder = o
	return m.err
}

type mockPublisher struct {
	published []*Order
	err       error
}

func (m *mockPublisher) PublishOrderPlaced(_ context.Context, o *Order) error {
	m.published = append(m.published, o)
	return m.err
}

// --- Helpers ---

func validRequest() CheckoutRequest {
	return CheckoutRequest{
		SessionID: "sess-1",
		Email:     "neo@chorbazzar.dev",
		FirstName: "Neo",
		LastName:  "Anderson",
		Address:   "101 Construct Ave",
		City:      "Zion",
		Zip:       "10101",
	}
}

func newCart(t *testing.T, products ...product.Product) *cart.Store {
	t.Helper()
	s, err := cart.NewStore(context.Background(), cart.Options{Storage: memory.New(), Key: "k"})
	require.NoError(t, err)
	for _, p := range products {
		require.NoError(t, s.AddToCart(context.Background(), p, 1))
	}
	return s
}

func testProduct(id, price string) product.Product {
	return product.Product{ID: id, Title: "Item " + id, Price: decimal.RequireFromString(price), Stock: 5}
}

func stocked() *product.Static {
	return product.NewStatic([]product.Product{
		testProduct("1", "50"), testProduct("2", "30"), testProduct("3", "20"),
	})
}

type catalogFunc func(ids []string) ([]product.Product, error)

func (f catalogFunc) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	return f(ids)
}

// --- Tests ---

func TestCheckout_Success(t *testing.T) {
	ctx := context.Background()
	c := newCart(t, testProduct("1", "50"), testProduct("2", "30"), testProduct("3", "20"))
	res, err := c.ApplyPromoCode(ctx, pricing.MachSpeed20)
	require.NoError(t, err)
	require.True(t, res.Success)

	pay := &mockPayment{}
	repo := &mockOrderRepo{}
	pub := &mockPublisher{}
	svc := NewService(stocked(), pay, repo, pub)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }

	o, err := svc.Checkout(ctx, c, validRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, pay.calls)
	assert.Same(t, o, repo.lastOrder)
	require.Len(t, pub.published, 1)
	assert.Equal(t, "sess-1", o.SessionID)
	assert.Equal(t, pricing.MachSpeed20, o.PromoCode)
	assert.Len(t, o.Items, 3)
	assert.True(t, decimal.RequireFromString("100").Equal(o.Subtotal))
	assert.True(t, decimal.RequireFromString("20").Equal(o.Discount))
	assert.True(t, decimal.RequireFromString("15").Equal(o.Shipping))
	assert.True(t, decimal.RequireFromString("6.4").Equal(o.Taxes))
	assert.True(t, decimal.RequireFromString("101.4").Equal(o.Total))
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, 2024, o.CreatedAt.Year())

	assert.Empty(t, c.Items())
	assert.Empty(t, c.PromoCode())
}

func TestCheckout_EmptyCart(t *testing.T) {
	pay := &mockPayment{}
	svc := NewService(stocked(), pay, &mockOrderRepo{}, nil)

	_, err := svc.Checkout(context.Background(), newCart(t), validRequest())
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Zero(t, pay.calls)
}

func TestCheckout_InvalidRequest(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *CheckoutRequest)
		field  string
	}{
		{name: "MissingEmail", mutate: func(r *CheckoutRequest) { r.Email = "" }, field: "Email"},
		{name: "BadEmail", mutate: func(r *CheckoutRequest) { r.Email = "not-an-email" }, field: "Email"},
		{name: "MissingCity", mutate: func(r *CheckoutRequest) { r.City = "" }, field: "City"},
		{name: "BadZip", mutate: func(r *CheckoutRequest) { r.Zip = "1 2" }, field: "Zip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCart(t, testProduct("1", "10"))
			svc := NewService(stocked(), &mockPayment{}, &mockOrderRepo{}, nil)
			req := validRequest()
			tt.mutate(&req)

			_, err := svc.Checkout(context.Background(), c, req)
			var verrs validator.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.Equal(t, tt.field, verrs[0].Field())
			assert.Len(t, c.Items(), 1)
		})
	}
}

func TestCheckout_UnavailableKeepsCart(t *testing.T) {
	soldOut := testProduct("2", "30")
	soldOut.Stock = 0

	tests := []struct {
		name    string
		catalog Catalog
		wantErr error
	}{
		{
			name:    "SoldOut",
			catalog: product.NewStatic([]product.Product{testProduct("1", "10"), soldOut}),
			wantErr: ErrUnavailable,
		},
		{
			name:    "Delisted",
			catalog: product.NewStatic([]product.Product{testProduct("1", "10")}),
			wantErr: ErrUnavailable,
		},
		{
			name: "CatalogDown",
			catalog: catalogFunc(func([]string) ([]product.Product, error) {
				return nil, errors.New("db down")
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCart(t, testProduct("1", "10"), testProduct("2", "30"))
			pay := &mockPayment{}
			repo := &mockOrderRepo{}
			svc := NewService(tt.catalog, pay, repo, nil)

			_, err := svc.Checkout(context.Background(), c, validRequest())
			require.Error(t, err)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Contains(t, err.Error(), "Item 2")
			}
			assert.Zero(t, pay.calls)
			assert.Nil(t, repo.lastOrder)
			assert.Len(t, c.Items(), 2)
		})
	}
}

func TestCheckout_PaymentFailureKeepsCart(t *testing.T) {
	c := newCart(t, testProduct("1", "10"))
	repo := &mockOrderRepo{}
	svc := NewService(stocked(), &mockPayment{err: ErrPaymentDeclined}, repo, nil)

	_, err := svc.Checkout(context.Background(), c, validRequest())
	require.ErrorIs(t, err, ErrPaymentDeclined)
	assert.Nil(t, repo.lastOrder)
	assert.Len(t, c.Items(), 1)
}

func TestCheckout_RepositoryFailureKeepsCart(t *testing.T) {
	c := newCart(t, testProduct("1", "10"))
	pub := &mockPublisher{}
	svc := NewService(stocked(), &mockPayment{}, &mockOrderRepo{err: errors.New("db down")}, pub)

	_, err := svc.Checkout(context.Background(), c, validRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
	assert.Empty(t, pub.published)
	assert.Len(t, c.Items(), 1)
}

func TestCheckout_PublishFailureIsNotFatal(t *testing.T) {
	c := newCart(t, testProduct("1", "10"))
	svc := NewService(stocked(), &mockPayment{}, NewMemoryRepository(), &mockPublisher{err: errors.New("broker gone")})

	o, err := svc.Checkout(context.Background(), c, validRequest())
	require.NoError(t, err)
	assert.NotNil(t, o)
	assert.Empty(t, c.Items())
}

func TestSimulatedPayment(t *testing.T) {
	t.Run("Delay", func(t *testing.T) {
		start := time.Now()
		require.NoError(t, SimulatedPayment{Delay: 20 * time.Millisecond}.Authorize(context.Background(), "", pricing.Quote{}))
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})
	t.Run("Canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := SimulatedPayment{Delay: time.Hour}.Authorize(ctx, "", pricing.Quote{})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestMemoryRepository(t *testing.T) {
	repo := NewMemoryRepository()
	o := &Order{ID: "o1", Items: []Item{{ProductID: "1", Quantity: 2}}}
	require.NoError(t, repo.Create(context.Background(), o))
	o.Items[0].Quantity = 99

	got := repo.Orders()
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Items[0].Quantity)
}

func TestItemsJSON(t *testing.T) {
	items := []Item{
		{ProductID: "1", Title: "Jacket", UnitPrice: decimal.RequireFromString("49.99"), Quantity: 2},
		{ProductID: "2", Title: "Cap", UnitPrice: decimal.RequireFromString("5"), Quantity: 1},
	}

	got, err := UnmarshalItems(MarshalItems(items))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Jacket", got[0].Title)
	assert.True(t, items[0].UnitPrice.Equal(got[0].UnitPrice))
	assert.Equal(t, 1, got[1].Quantity)
}
