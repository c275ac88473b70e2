package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/chorbazzar/internal/domain/product"
	"github.com/xenking/chorbazzar/internal/storage/memory"
)

var tee = product.Product{ID: "1", Title: "Glitch Tee", Price: decimal.RequireFromString("25"), Stock: 4}

func TestRegistry_GetReturnsSameSession(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(Config{Storage: memory.New()})

	a, err := r.Get(ctx, "s1")
	require.NoError(t, err)
	b, err := r.Get(ctx, "s1")
	require.NoError(t, err)
	c, err := r.Get(ctx, "s2")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, r.Len())

	_, err = r.Get(ctx, "")
	assert.Error(t, err)
}

func TestRegistry_ConcurrentGet(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(Config{Storage: memory.New()})

	got := make([]*Session, 20)
	var wg sync.WaitGroup
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := r.Get(ctx, "shared")
			assert.NoError(t, err)
			got[i] = s
		}()
	}
	wg.Wait()

	for _, s := range got {
		assert.Same(t, got[0], s)
	}
}

func TestRegistry_EvictReloadsFromStorage(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRegistry(Config{Storage: memory.New(), IdleTTL: time.Minute})
	r.now = func() time.Time { return now }

	s, err := r.Get(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, s.Cart.AddToCart(ctx, tee, 2))
	_, err = s.Wishlist.Toggle(ctx, tee)
	require.NoError(t, err)

	assert.Zero(t, r.evict(now.Add(30*time.Second)))
	assert.Equal(t, 1, r.evict(now.Add(time.Minute)))
	assert.Zero(t, r.Len())

	reloaded, err := r.Get(ctx, "s1")
	require.NoError(t, err)
	assert.NotSame(t, s, reloaded)
	assert.Equal(t, 2, reloaded.Cart.ItemCount())
	assert.True(t, reloaded.Wishlist.Contains("1"))
}

func TestRegistry_NotificationsReachFeed(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(Config{Storage: memory.New(), ToastTTL: time.Minute})

	s, err := r.Get(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, s.Cart.AddToCart(ctx, tee, 1))
	_, err = s.Wishlist.Toggle(ctx, tee)
	require.NoError(t, err)

	msgs := s.Feed.Drain()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Added Glitch Tee to cart", msgs[0].Text)
	assert.Equal(t, "Stashed Glitch Tee", msgs[1].Text)
}

func TestRegistry_RunStopsOnCancel(t *testing.T) {
	r := NewRegistry(Config{Storage: memory.New(), IdleTTL: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

type gaugeMeter struct {
	metric.Meter
	name      string
	callbacks []metric.Int64Callback
}

func (m *gaugeMeter) Int64ObservableGauge(name string, opts ...metric.Int64ObservableGaugeOption) (metric.Int64ObservableGauge, error) {
	m.name = name
	m.callbacks = metric.NewInt64ObservableGaugeConfig(opts...).Callbacks()
	return nil, nil
}

type lastValue struct {
	metric.Int64Observer
	v int64
}

func (o *lastValue) Observe(v int64, _ ...metric.ObserveOption) { o.v = v }

func TestRegistry_ActiveGauge(t *testing.T) {
	ctx := context.Background()
	m := &gaugeMeter{Meter: noop.NewMeterProvider().Meter("test")}
	r := NewRegistry(Config{Storage: memory.New(), Meter: m})

	require.Equal(t, "session.active", m.name)
	require.Len(t, m.callbacks, 1)

	for _, id := range []string{"s1", "s2", "s1"} {
		_, err := r.Get(ctx, id)
		require.NoError(t, err)
	}

	var obs lastValue
	require.NoError(t, m.callbacks[0](ctx, &obs))
	assert.Equal(t, int64(2), obs.v)
}
