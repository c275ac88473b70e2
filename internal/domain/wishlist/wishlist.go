// Package wishlist keeps the set of products a shopper has stashed.
package wishlist

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.uber.org/zap"

	"github.com/xenking/chorbazzar/internal/domain/product"
	"github.com/xenking/chorbazzar/internal/notify"
	"github.com/xenking/chorbazzar/internal/storage"
)

// ErrMissingID is returned when a product without an identifier is toggled.
var ErrMissingID = errors.New("product id required")

// Options configures a Store.
type Options struct {
	Storage  storage.Store
	Key      string
	Notifier notify.Notifier
	Logger   *zap.Logger
}

// Store is a set of product snapshots keyed by product id, kept in the order
// they were stashed.
type Store struct {
	storage  storage.Store
	key      string
	notifier notify.Notifier
	lg       *zap.Logger

	mu       sync.Mutex
	products []product.Product
}

// NewStore creates a Store and loads its entries from storage, starting
// empty when the record is missing or unreadable.
func NewStore(ctx context.Context, opts Options) *Store {
	if opts.Key == "" {
		opts.Key = storage.WishlistNamespace
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Store{
		storage:  opts.Storage,
		key:      opts.Key,
		notifier: opts.Notifier,
		lg:       opts.Logger.With(zap.String("wishlist", opts.Key)),
	}
	s.products = s.load(ctx)
	return s
}

func (s *Store) load(ctx context.Context) []product.Product {
	if s.storage == nil {
		return nil
	}
	data, err := s.storage.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		s.lg.Warn("Failed to load wishlist, starting empty", zap.Error(err))
		return nil
	}
	products, err := Decode(data)
	if err != nil {
		s.lg.Warn("Discarding malformed wishlist record", zap.Error(err))
		return nil
	}
	return products
}

// Toggle stashes p when absent and removes it when present. It reports
// whether p is in the wishlist afterwards.
func (s *Store) Toggle(ctx context.Context, p product.Product) (bool, error) {
	if p.ID == "" {
		return false, ErrMissingID
	}

	s.mu.Lock()
	i := s.indexOf(p.ID)
	added := i < 0
	if added {
		s.products = append(s.products, p)
	} else {
		s.products = slices.Delete(s.products, i, i+1)
	}
	s.persist(ctx)
	s.mu.Unlock()

	if added {
		s.notifier.Notify(fmt.Sprintf("Stashed %s", p.Title))
	} else {
		s.notifier.Notify(fmt.Sprintf("Removed %s from stash", p.Title))
	}
	return added, nil
}

// Contains reports whether productID is stashed.
func (s *Store) Contains(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(productID) >= 0
}

// Items returns the stashed products.
func (s *Store) Items() []product.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.products)
}

func (s *Store) indexOf(productID string) int {
	return slices.IndexFunc(s.products, func(p product.Product) bool {
		return p.ID == productID
	})
}

func (s *Store) persist(ctx context.Context) {
	if s.storage == nil {
		return
	}
	if err := s.storage.Put(ctx, s.key, Encode(s.products)); err != nil {
		s.lg.Error("Failed to persist wishlist", zap.Error(err))
	}
}

// Encode writes products as a JSON array of snapshots.
func Encode(products []product.Product) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ArrStart()
	for _, p := range products {
		product.Encode(e, p)
	}
	e.ArrEnd()

	return append([]byte(nil), e.Bytes()...)
}

// Decode parses a persisted wishlist. Entries without an id fail the record;
// repeated ids keep the first occurrence.
func Decode(data []byte) ([]product.Product, error) {
	var products []product.Product
	seen := make(map[string]struct{})
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		p, err := product.Decode(d)
		if err != nil {
			return err
		}
		if p.ID == "" {
			return ErrMissingID
		}
		if _, dup := seen[p.ID]; dup {
			return nil
		}
		seen[p.ID] = struct{}{}
		products = append(products, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}
