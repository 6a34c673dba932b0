package striper

import (
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/filter"
	"github.com/ajitpratap0/quasar/pkg/symbol"
)

// Hash spreads symbols over N stripes by the xxhash of the symbol string.
// The wildcard symbol always maps to stripe 0.
type Hash struct {
	codec    symbol.Codec
	n        uint64
	wildcard int
	name     string
	filters  []*StripeFilter
}

// NewHash creates a hash striper with n stripes, n >= 2.
func NewHash(codec symbol.Codec, n int) (*Hash, error) {
	if n < 2 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "hash striper needs at least 2 stripes, got %d", n)
	}
	if codec == nil {
		codec = symbol.Default
	}
	h := &Hash{
		codec:    codec,
		n:        uint64(n),
		wildcard: codec.WildcardCipher(),
		name:     hashPrefix + strconv.Itoa(n),
	}
	h.filters = make([]*StripeFilter, n)
	for i := range h.filters {
		h.filters[i] = newStripeFilter(h, i, "hash"+strconv.Itoa(i)+"of"+strconv.Itoa(n))
	}
	return h, nil
}

func (h *Hash) Name() string        { return h.name }
func (h *Hash) StripeCount() int    { return int(h.n) }
func (h *Hash) Codec() symbol.Codec { return h.codec }

// Index implements Striper
func (h *Hash) Index(cipher int, sym string) int {
	if cipher != 0 {
		if cipher == h.wildcard {
			return 0
		}
		sym = h.codec.Decode(cipher)
	} else if sym == symbol.Wildcard {
		return 0
	}
	return int(xxhash.Sum64String(sym) % h.n)
}

// IndexBytes implements Striper
func (h *Hash) IndexBytes(chars []byte) int {
	if len(chars) == 1 && chars[0] == symbol.Wildcard[0] {
		return 0
	}
	return int(xxhash.Sum64(chars) % h.n)
}

// StripeFilter implements Striper
func (h *Hash) StripeFilter(i int) filter.Filter {
	return h.filters[i]
}

// IntersectingStripes implements Striper
func (h *Hash) IntersectingStripes(f filter.Filter) []bool {
	return intersecting(h, f)
}
