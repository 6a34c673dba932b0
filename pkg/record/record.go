// Package record defines the typed records exchanged between producers,
// collectors and consumers, together with the Source/Sink contracts and the
// growable Buffer used to stage records in transit.
package record

import (
	"github.com/ajitpratap0/quasar/pkg/symbol"
)

// Mode tells which parts of a record are meaningful.
type Mode int

const (
	// ModeData carries field values.
	ModeData Mode = iota
	// ModeSubscription carries only type and symbol.
	ModeSubscription
	// ModeHistorySubscription carries type, symbol and the starting time.
	ModeHistorySubscription
)

// String returns the mode name
func (m Mode) String() string {
	switch m {
	case ModeData:
		return "data"
	case ModeSubscription:
		return "subscription"
	case ModeHistorySubscription:
		return "history_subscription"
	default:
		return "unknown"
	}
}

// IsSubscription reports whether records in this mode describe subscription.
func (m Mode) IsSubscription() bool {
	return m == ModeSubscription || m == ModeHistorySubscription
}

// Type describes a record type: its name and field layout.
type Type struct {
	Name      string
	IntFields []string
	ObjFields []string
	// TimeIndexed types can be kept in a history collector.
	TimeIndexed bool
	id          int
}

// NewType creates a record type.
func NewType(name string, timeIndexed bool, intFields []string, objFields []string) *Type {
	return &Type{
		Name:        name,
		IntFields:   intFields,
		ObjFields:   objFields,
		TimeIndexed: timeIndexed,
	}
}

// ID returns the index of the type inside its scheme.
func (t *Type) ID() int {
	return t.id
}

// IntIndex returns the position of the named int field or -1.
func (t *Type) IntIndex(name string) int {
	for i, f := range t.IntFields {
		if f == name {
			return i
		}
	}
	return -1
}

// ObjIndex returns the position of the named object field or -1.
func (t *Type) ObjIndex(name string) int {
	for i, f := range t.ObjFields {
		if f == name {
			return i
		}
	}
	return -1
}

// String returns the type name
func (t *Type) String() string {
	return t.Name
}

// Record is one typed record. A record addresses its symbol either by a
// non-zero Cipher or, when the symbol cannot be encoded, by Symbol.
type Record struct {
	Type   *Type
	Cipher int
	Symbol string
	Time   int64
	Ints   []int64
	Objs   []interface{}
}

// Clone returns a deep copy of the record's field slices.
func (r *Record) Clone() Record {
	c := *r
	if r.Ints != nil {
		c.Ints = append([]int64(nil), r.Ints...)
	}
	if r.Objs != nil {
		c.Objs = append([]interface{}(nil), r.Objs...)
	}
	return c
}

// DecodedSymbol returns the symbol string regardless of how it is addressed.
func (r *Record) DecodedSymbol(codec symbol.Codec) string {
	if r.Cipher != 0 {
		return codec.Decode(r.Cipher)
	}
	return r.Symbol
}

// Scheme is the set of record types known to a collector plus the codec used
// to encode their symbols.
type Scheme struct {
	codec  symbol.Codec
	types  []*Type
	byName map[string]*Type
}

// NewScheme creates a scheme. A nil codec selects symbol.Default.
func NewScheme(codec symbol.Codec, types ...*Type) *Scheme {
	if codec == nil {
		codec = symbol.Default
	}
	s := &Scheme{
		codec:  codec,
		types:  types,
		byName: make(map[string]*Type, len(types)),
	}
	for i, t := range types {
		t.id = i
		s.byName[t.Name] = t
	}
	return s
}

// Codec returns the scheme's symbol codec
func (s *Scheme) Codec() symbol.Codec {
	return s.codec
}

// Types returns all record types
func (s *Scheme) Types() []*Type {
	return s.types
}

// FindType returns the type with the given name or nil
func (s *Scheme) FindType(name string) *Type {
	return s.byName[name]
}

// Cipher returns the (cipher, symbol) address for a symbol string: a non-zero
// cipher with an empty symbol when encodable, otherwise zero and the symbol.
func (s *Scheme) Cipher(sym string) (int, string) {
	if c := s.codec.Encode(sym); c != 0 {
		return c, ""
	}
	return 0, sym
}
