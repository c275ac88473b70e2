package pricing

import (
	"context"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
)

const guardFPR = 0.001

var _ Registry = (*GuardedRegistry)(nil)

// GuardedRegistry fronts a slow registry (a database) with a bloom filter of
// every known code, so garbage input is rejected without a round trip.
type GuardedRegistry struct {
	next   Registry
	filter *bloom.BloomFilter
}

// NewGuardedRegistry loads all codes from source and returns a registry that
// consults next only for codes that may exist. The filter is built once; codes
// added to the backing store later are invisible until the next restart.
func NewGuardedRegistry(ctx context.Context, source Lister, next Registry) (*GuardedRegistry, error) {
	codes, err := source.Codes(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list promotion codes")
	}

	n := uint(len(codes))
	if n < 16 {
		n = 16
	}
	filter := bloom.NewWithEstimates(n, guardFPR)
	for _, c := range codes {
		filter.AddString(NormalizeCode(c))
	}

	return &GuardedRegistry{next: next, filter: filter}, nil
}

// Lookup rejects codes definitely absent from the filter and delegates the rest.
func (g *GuardedRegistry) Lookup(ctx context.Context, code string) (*Rule, error) {
	code = NormalizeCode(code)
	if !g.filter.TestString(code) {
		return nil, ErrUnknownCode
	}
	return g.next.Lookup(ctx, code)
}
