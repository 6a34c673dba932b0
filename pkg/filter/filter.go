// Package filter provides subscription filters: predicates over (record type,
// symbol) used to scope agents, distributors and store-everything mode.
package filter

import (
	"sort"
	"strings"

	"github.com/ajitpratap0/quasar/pkg/record"
	"github.com/ajitpratap0/quasar/pkg/symbol"
)

// Filter decides whether a (type, symbol) pair is in scope.
type Filter interface {
	// Accept reports whether the pair passes the filter. Exactly one of
	// cipher (non-zero) or symbol addresses the symbol.
	Accept(t *record.Type, cipher int, symbol string) bool
	// IsStable reports whether Accept never changes its answer for a given
	// pair during the filter's lifetime.
	IsStable() bool
	// String describes the filter.
	String() string
}

type anyFilter struct{}

func (anyFilter) Accept(*record.Type, int, string) bool { return true }
func (anyFilter) IsStable() bool                        { return true }
func (anyFilter) String() string                        { return "*" }

// Any accepts everything.
var Any Filter = anyFilter{}

// IsAny reports whether f accepts everything. A nil filter is Any.
func IsAny(f Filter) bool {
	return f == nil || f == Any
}

type andFilter struct {
	a, b Filter
}

// And returns a filter accepting pairs accepted by both a and b.
func And(a, b Filter) Filter {
	switch {
	case IsAny(a) && IsAny(b):
		return Any
	case IsAny(a):
		return b
	case IsAny(b):
		return a
	}
	return &andFilter{a: a, b: b}
}

func (f *andFilter) Accept(t *record.Type, cipher int, symbol string) bool {
	return f.a.Accept(t, cipher, symbol) && f.b.Accept(t, cipher, symbol)
}

func (f *andFilter) IsStable() bool {
	return f.a.IsStable() && f.b.IsStable()
}

func (f *andFilter) String() string {
	return f.a.String() + "&" + f.b.String()
}

// SymbolSet accepts a fixed set of symbols of any type.
type SymbolSet struct {
	codec   symbol.Codec
	symbols map[string]struct{}
	names   []string
}

// Symbols creates a symbol set filter.
func Symbols(codec symbol.Codec, names ...string) *SymbolSet {
	if codec == nil {
		codec = symbol.Default
	}
	s := &SymbolSet{
		codec:   codec,
		symbols: make(map[string]struct{}, len(names)),
	}
	for _, n := range names {
		if _, ok := s.symbols[n]; ok {
			continue
		}
		s.symbols[n] = struct{}{}
		s.names = append(s.names, n)
	}
	sort.Strings(s.names)
	return s
}

// Accept implements Filter
func (s *SymbolSet) Accept(_ *record.Type, cipher int, sym string) bool {
	if cipher != 0 {
		sym = s.codec.Decode(cipher)
	}
	_, ok := s.symbols[sym]
	return ok
}

// IsStable implements Filter
func (s *SymbolSet) IsStable() bool {
	return true
}

// Symbols returns the sorted symbol names
func (s *SymbolSet) Symbols() []string {
	return s.names
}

// String implements Filter
func (s *SymbolSet) String() string {
	return "symbols(" + strings.Join(s.names, ",") + ")"
}

type funcFilter struct {
	name   string
	stable bool
	fn     func(t *record.Type, cipher int, symbol string) bool
}

// Func wraps a predicate as a filter.
func Func(name string, stable bool, fn func(t *record.Type, cipher int, symbol string) bool) Filter {
	return &funcFilter{name: name, stable: stable, fn: fn}
}

func (f *funcFilter) Accept(t *record.Type, cipher int, symbol string) bool {
	return f.fn(t, cipher, symbol)
}

func (f *funcFilter) IsStable() bool {
	return f.stable
}

func (f *funcFilter) String() string {
	return f.name
}
