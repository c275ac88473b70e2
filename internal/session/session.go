// Package session maps shopper sessions to their cart, wishlist and toast
// feed, loading them from durable storage on first use.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/chorbazzar/internal/domain/cart"
	"github.com/xenking/chorbazzar/internal/domain/pricing"
	"github.com/xenking/chorbazzar/internal/domain/wishlist"
	"github.com/xenking/chorbazzar/internal/notify"
	"github.com/xenking/chorbazzar/internal/storage"
)

// DefaultIdleTTL is how long an untouched session stays in memory.
const DefaultIdleTTL = 30 * time.Minute

// Session is the state owned by one shopper.
type Session struct {
	ID       string
	Cart     *cart.Store
	Wishlist *wishlist.Store
	Feed     *notify.Feed
}

// Config configures a Registry.
type Config struct {
	Storage  storage.Store
	Engine   *pricing.Engine
	IdleTTL  time.Duration
	ToastTTL time.Duration
	Logger   *zap.Logger
	Meter    metric.Meter
}

type entry struct {
	session  *Session
	lastSeen time.Time
}

// Registry holds live sessions. Idle sessions are dropped from memory; their
// state is already persisted and is reloaded on the next request.
type Registry struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewRegistry creates an empty Registry.
func NewRegistry(cfg Config) *Registry {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	r := &Registry{
		cfg:      cfg,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
	if cfg.Meter != nil {
		if _, err := cfg.Meter.Int64ObservableGauge("session.active",
			metric.WithDescription("Sessions held in memory"),
			metric.WithInt64Callback(r.observe),
		); err != nil {
			cfg.Logger.Warn("Failed to register session gauge", zap.Error(err))
		}
	}
	return r
}

func (r *Registry) observe(_ context.Context, o metric.Int64Observer) error {
	o.Observe(int64(r.Len()))
	return nil
}

// Get returns the session for id, creating it on first use.
func (r *Registry) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, errors.New("empty session id")
	}
	if s := r.lookup(id); s != nil {
		return s, nil
	}

	// Load outside the lock; a concurrent loser is discarded.
	s, err := r.open(ctx, id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[id]; ok {
		e.lastSeen = r.now()
		return e.session, nil
	}
	r.sessions[id] = &entry{session: s, lastSeen: r.now()}
	return s, nil
}

func (r *Registry) lookup(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil
	}
	e.lastSeen = r.now()
	return e.session
}

func (r *Registry) open(ctx context.Context, id string) (*Session, error) {
	lg := r.cfg.Logger.With(zap.String("session_id", id))
	feed := notify.NewFeed(r.cfg.ToastTTL)
	notifier := notify.Fanout{feed, notify.NewLog(lg)}

	c, err := cart.NewStore(ctx, cart.Options{
		Storage:  r.cfg.Storage,
		Key:      storage.Key(storage.CartNamespace, id),
		Engine:   r.cfg.Engine,
		Notifier: notifier,
		Logger:   lg,
		Meter:    r.cfg.Meter,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open cart")
	}
	w := wishlist.NewStore(ctx, wishlist.Options{
		Storage:  r.cfg.Storage,
		Key:      storage.Key(storage.WishlistNamespace, id),
		Notifier: notifier,
		Logger:   lg,
	})

	return &Session{ID: id, Cart: c, Wishlist: w, Feed: feed}, nil
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// evict drops sessions idle for at least IdleTTL and returns how many.
func (r *Registry) evict(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, e := range r.sessions {
		if now.Sub(e.lastSeen) >= r.cfg.IdleTTL {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

// Run evicts idle sessions every half IdleTTL until ctx is done.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.IdleTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if n := r.evict(now); n > 0 {
				r.cfg.Logger.Debug("Evicted idle sessions", zap.Int("count", n))
			}
		}
	}
}
