// Package striper maps symbols to stripes (shards). A striper is a pure,
// stable function: the same symbol always lands in the same stripe for the
// lifetime of the striper, whether it is addressed by cipher, by string or by
// raw characters.
package striper

import (
	"strconv"
	"strings"

	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/filter"
	"github.com/ajitpratap0/quasar/pkg/record"
	"github.com/ajitpratap0/quasar/pkg/symbol"
)

const (
	monoSpec   = "by1"
	hashPrefix = "byhash"
	rangeSpec  = "byrange"
)

// Striper routes symbols to stripes.
type Striper interface {
	// Name returns the specification the striper was built from.
	Name() string
	// StripeCount returns the number of stripes N.
	StripeCount() int
	// Codec returns the codec used to decode ciphers.
	Codec() symbol.Codec
	// Index returns the stripe in [0, N) for a symbol addressed by a
	// non-zero cipher or by its string.
	Index(cipher int, sym string) int
	// IndexBytes returns the stripe for a symbol given as raw characters.
	IndexBytes(chars []byte) int
	// StripeFilter returns the stable filter accepting exactly stripe i.
	StripeFilter(i int) filter.Filter
	// IntersectingStripes returns which stripes the filter may accept, or
	// nil when it may accept any stripe.
	IntersectingStripes(f filter.Filter) []bool
}

// ValueOf parses a striper specification: "by1", "byhashN" or
// "byrange<d>R1<d>R2<d>...<d>".
func ValueOf(codec symbol.Codec, spec string) (Striper, error) {
	if codec == nil {
		codec = symbol.Default
	}
	switch {
	case spec == monoSpec:
		return NewMono(codec), nil
	case strings.HasPrefix(spec, hashPrefix):
		n, err := strconv.Atoi(spec[len(hashPrefix):])
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid hash striper spec").
				WithDetail("spec", spec)
		}
		return NewHash(codec, n)
	case strings.HasPrefix(spec, rangeSpec):
		return ParseRange(codec, spec)
	}
	return nil, errors.Newf(errors.ErrorTypeConfig, "unknown striper spec %q", spec)
}

// New returns a striper for n stripes: Mono for n <= 1, Hash otherwise.
func New(codec symbol.Codec, n int) Striper {
	if codec == nil {
		codec = symbol.Default
	}
	if n <= 1 {
		return NewMono(codec)
	}
	h, _ := NewHash(codec, n)
	return h
}

// StripeFilter accepts the symbols one striper routes to one stripe.
type StripeFilter struct {
	striper  Striper
	index    int
	name     string
	wildcard int
}

func newStripeFilter(s Striper, index int, name string) *StripeFilter {
	return &StripeFilter{
		striper:  s,
		index:    index,
		name:     name,
		wildcard: s.Codec().WildcardCipher(),
	}
}

// Accept implements filter.Filter. The wildcard symbol is accepted by every
// stripe.
func (f *StripeFilter) Accept(_ *record.Type, cipher int, sym string) bool {
	if cipher == f.wildcard && cipher != 0 || sym == symbol.Wildcard {
		return true
	}
	return f.striper.Index(cipher, sym) == f.index
}

// IsStable implements filter.Filter
func (f *StripeFilter) IsStable() bool { return true }

// String implements filter.Filter
func (f *StripeFilter) String() string { return f.name }

// Striper returns the striper the filter belongs to
func (f *StripeFilter) Striper() Striper { return f.striper }

// Index returns the stripe the filter accepts
func (f *StripeFilter) Index() int { return f.index }

// intersecting resolves the stripes a filter may accept. Stripe filters of
// the same striper and symbol sets resolve exactly; anything else may touch
// every stripe.
func intersecting(s Striper, f filter.Filter) []bool {
	if filter.IsAny(f) {
		return nil
	}
	switch sf := f.(type) {
	case *StripeFilter:
		if sf.striper.Name() != s.Name() {
			return nil
		}
		set := make([]bool, s.StripeCount())
		set[sf.index] = true
		return set
	case *filter.SymbolSet:
		set := make([]bool, s.StripeCount())
		for _, sym := range sf.Symbols() {
			if sym == symbol.Wildcard {
				return nil
			}
			set[s.Index(0, sym)] = true
		}
		return set
	}
	return nil
}

// CountStripes returns how many stripes a set from IntersectingStripes
// covers, with nil meaning all n.
func CountStripes(set []bool, n int) int {
	if set == nil {
		return n
	}
	c := 0
	for _, ok := range set {
		if ok {
			c++
		}
	}
	return c
}
