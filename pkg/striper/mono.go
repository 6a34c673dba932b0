package striper

import (
	"github.com/ajitpratap0/quasar/pkg/filter"
	"github.com/ajitpratap0/quasar/pkg/symbol"
)

// Mono keeps every symbol in a single stripe.
type Mono struct {
	codec symbol.Codec
}

// NewMono creates the single-stripe striper
func NewMono(codec symbol.Codec) *Mono {
	return &Mono{codec: codec}
}

func (m *Mono) Name() string                   { return monoSpec }
func (m *Mono) StripeCount() int               { return 1 }
func (m *Mono) Codec() symbol.Codec            { return m.codec }
func (m *Mono) Index(int, string) int          { return 0 }
func (m *Mono) IndexBytes([]byte) int          { return 0 }
func (m *Mono) StripeFilter(int) filter.Filter { return filter.Any }

func (m *Mono) IntersectingStripes(filter.Filter) []bool {
	return nil
}
