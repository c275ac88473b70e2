package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

var _ Repository = (*Static)(nil)

// Static is an in-memory catalog loaded once at startup.
type Static struct {
	products []Product
	byID     map[string]int
}

// NewStatic returns a catalog serving the given products in order.
func NewStatic(products []Product) *Static {
	byID := make(map[string]int, len(products))
	for i, p := range products {
		byID[p.ID] = i
	}
	return &Static{products: products, byID: byID}
}

// ParseStatic decodes a JSON array of products into a Static catalog.
func ParseStatic(data []byte) (*Static, error) {
	var products []Product
	d := jx.DecodeBytes(data)
	if err := d.Arr(func(d *jx.Decoder) error {
		p, err := Decode(d)
		if err != nil {
			return err
		}
		if p.ID == "" {
			return errors.New("product without id")
		}
		products = append(products, p)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "parse catalog")
	}
	return NewStatic(products), nil
}

// List returns all products in catalog order.
func (s *Static) List(_ context.Context) ([]Product, error) {
	out := make([]Product, len(s.products))
	copy(out, s.products)
	return out, nil
}

// GetByID returns a single product by its identifier.
func (s *Static) GetByID(_ context.Context, id string) (*Product, error) {
	i, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	p := s.products[i]
	return &p, nil
}

// GetByIDs returns the products matching any of the given IDs. Unknown IDs
// are skipped.
func (s *Static) GetByIDs(_ context.Context, ids []string) ([]Product, error) {
	out := make([]Product, 0, len(ids))
	for _, id := range ids {
		if i, ok := s.byID[id]; ok {
			out = append(out, s.products[i])
		}
	}
	return out, nil
}
