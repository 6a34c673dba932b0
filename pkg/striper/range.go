package striper

import (
	"sort"
	"strings"

	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/filter"
	"github.com/ajitpratap0/quasar/pkg/symbol"
)

const rangeChars = "_abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var validRangeChar [128]bool

func init() {
	for i := 0; i < len(rangeChars); i++ {
		validRangeChar[rangeChars[i]] = true
	}
}

func isRangeChar(c byte) bool {
	return c < 128 && validRangeChar[c]
}

// Range splits the symbol space into lexicographic ranges. With K bounds
// there are K+1 stripes: stripe 0 holds symbols below the first bound and
// stripe i holds symbols in [bound[i-1], bound[i]). Leading characters that
// are not letters, digits or underscore are ignored when comparing, so
// "/ESZ4" and "ESZ4" share a stripe. The wildcard symbol maps to stripe 0.
type Range struct {
	codec    symbol.Codec
	bounds   []string
	wildcard int
	name     string
	filters  []*StripeFilter
}

// ParseRange parses "byrange<d>R1<d>...<d>Rk<d>" where <d> is any character
// used as delimiter. Bounds must be non-empty, strictly increasing, and made
// of letters, digits and underscores other than the delimiter.
func ParseRange(codec symbol.Codec, spec string) (*Range, error) {
	body := strings.TrimPrefix(spec, rangeSpec)
	if len(body) < 2 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "range striper spec %q has no ranges", spec)
	}
	d := body[:1]
	if !strings.HasSuffix(body, d) {
		return nil, errors.Newf(errors.ErrorTypeConfig, "range striper spec %q must end with delimiter %q", spec, d)
	}
	inner := body[1 : len(body)-1]
	if inner == "" {
		return nil, errors.Newf(errors.ErrorTypeConfig, "range striper spec %q has no ranges", spec)
	}
	return NewRange(codec, d[0], strings.Split(inner, d))
}

// NewRange creates a range striper from explicit bounds.
func NewRange(codec symbol.Codec, delimiter byte, bounds []string) (*Range, error) {
	if len(bounds) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "range striper needs at least one range")
	}
	for i, b := range bounds {
		if b == "" {
			return nil, errors.Newf(errors.ErrorTypeConfig, "empty range %d", i)
		}
		for j := 0; j < len(b); j++ {
			if !isRangeChar(b[j]) || b[j] == delimiter {
				return nil, errors.Newf(errors.ErrorTypeConfig, "illegal range %d: %s", i, b)
			}
		}
		if i > 0 && bounds[i-1] >= b {
			return nil, errors.Newf(errors.ErrorTypeConfig, "illegal range %d: %s <= %s", i, b, bounds[i-1])
		}
	}
	if codec == nil {
		codec = symbol.Default
	}
	d := string(delimiter)
	r := &Range{
		codec:    codec,
		bounds:   append([]string(nil), bounds...),
		wildcard: codec.WildcardCipher(),
		name:     rangeSpec + d + strings.Join(bounds, d) + d,
	}
	r.filters = make([]*StripeFilter, len(bounds)+1)
	for i := range r.filters {
		lo, hi := "", ""
		if i > 0 {
			lo = bounds[i-1]
		}
		if i < len(bounds) {
			hi = bounds[i]
		}
		r.filters[i] = newStripeFilter(r, i, "range"+d+lo+d+hi+d)
	}
	return r, nil
}

func (r *Range) Name() string        { return r.name }
func (r *Range) StripeCount() int    { return len(r.bounds) + 1 }
func (r *Range) Codec() symbol.Codec { return r.codec }

// Bounds returns the range bounds
func (r *Range) Bounds() []string { return r.bounds }

// Index implements Striper
func (r *Range) Index(cipher int, sym string) int {
	if cipher != 0 {
		if cipher == r.wildcard {
			return 0
		}
		sym = r.codec.Decode(cipher)
	} else if sym == symbol.Wildcard {
		return 0
	}
	i := 0
	for i < len(sym) && !isRangeChar(sym[i]) {
		i++
	}
	key := sym[i:]
	return sort.Search(len(r.bounds), func(j int) bool { return r.bounds[j] > key })
}

// IndexBytes implements Striper
func (r *Range) IndexBytes(chars []byte) int {
	if len(chars) == 1 && chars[0] == symbol.Wildcard[0] {
		return 0
	}
	i := 0
	for i < len(chars) && !isRangeChar(chars[i]) {
		i++
	}
	key := chars[i:]
	return sort.Search(len(r.bounds), func(j int) bool { return r.bounds[j] > string(key) })
}

// StripeFilter implements Striper
func (r *Range) StripeFilter(i int) filter.Filter {
	return r.filters[i]
}

// IntersectingStripes implements Striper
func (r *Range) IntersectingStripes(f filter.Filter) []bool {
	return intersecting(r, f)
}
