package striper

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/filter"
	"github.com/ajitpratap0/quasar/pkg/symbol"
)

var testSymbols = []string{
	"A", "B", "C", "D", "AAPL", "IBM", "MSFT", "GOOG", "/ESZ4", "=SPX",
	"EUR/USD", "VERYLONGSYMBOL", "ibm", "_X", "9ABC", "",
}

func TestValueOf(t *testing.T) {
	tests := []struct {
		spec    string
		name    string
		stripes int
	}{
		{"by1", "by1", 1},
		{"byhash4", "byhash4", 4},
		{"byhash16", "byhash16", 16},
		{"byrange-A-K-T-", "byrange-A-K-T-", 4},
		{"byrange_G_", "byrange_G_", 2},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			s, err := ValueOf(nil, tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.name, s.Name())
			assert.Equal(t, tt.stripes, s.StripeCount())
		})
	}
}

func TestValueOf_Invalid(t *testing.T) {
	specs := []string{
		"", "bymagic", "byhash", "byhash1", "byhashX",
		"byrange", "byrange-", "byrange--", "byrange-A-K",
		"byrange-K-A-", "byrange-A-A-", "byrange-A--K-", "byrange-A.B-",
	}
	for _, spec := range specs {
		t.Run(spec, func(t *testing.T) {
			s, err := ValueOf(nil, spec)
			assert.Nil(t, s)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig), err.Error())
		})
	}
}

func TestNew(t *testing.T) {
	assert.Equal(t, "by1", New(nil, 0).Name())
	assert.Equal(t, "by1", New(nil, 1).Name())
	assert.Equal(t, "byhash8", New(nil, 8).Name())
}

func TestStriper_Determinism(t *testing.T) {
	codec := symbol.Default
	for _, spec := range []string{"by1", "byhash4", "byhash7", "byrange-A-K-T-"} {
		s, err := ValueOf(codec, spec)
		require.NoError(t, err)

		t.Run(spec, func(t *testing.T) {
			for _, sym := range testSymbols {
				idx := s.Index(0, sym)
				assert.GreaterOrEqual(t, idx, 0)
				assert.Less(t, idx, s.StripeCount())

				for i := 0; i < 3; i++ {
					assert.Equal(t, idx, s.Index(0, sym), "repeat %q", sym)
				}
				assert.Equal(t, idx, s.IndexBytes([]byte(sym)), "bytes %q", sym)
				if c := codec.Encode(sym); c != 0 {
					assert.Equal(t, idx, s.Index(c, ""), "cipher %q", sym)
				}
			}
		})
	}
}

func TestStriper_Wildcard(t *testing.T) {
	codec := symbol.Default
	for _, spec := range []string{"byhash4", "byrange-A-K-T-"} {
		s, err := ValueOf(codec, spec)
		require.NoError(t, err)
		assert.Equal(t, 0, s.Index(codec.WildcardCipher(), ""))
		assert.Equal(t, 0, s.Index(0, symbol.Wildcard))
		assert.Equal(t, 0, s.IndexBytes([]byte(symbol.Wildcard)))

		for i := 0; i < s.StripeCount(); i++ {
			assert.True(t, s.StripeFilter(i).Accept(nil, codec.WildcardCipher(), ""), "stripe %d", i)
		}
	}
}

func TestRange_Index(t *testing.T) {
	s, err := ParseRange(nil, "byrange-A-K-T-")
	require.NoError(t, err)

	tests := map[string]int{
		"":      0,
		"9ABC":  0,
		"A":     1,
		"AAPL":  1,
		"IBM":   1,
		"/ESZ4": 1,
		"K":     2,
		"MSFT":  2,
		"SPY":   2,
		"T":     3,
		"ZZZ":   3,
		"ibm":   3,
	}
	for sym, want := range tests {
		assert.Equal(t, want, s.Index(0, sym), sym)
	}
	assert.Equal(t, []string{"A", "K", "T"}, s.Bounds())
	assert.Equal(t, "range-K-T-", s.StripeFilter(2).String())
	assert.Equal(t, "range--A-", s.StripeFilter(0).String())
	assert.Equal(t, "range-T--", s.StripeFilter(3).String())
}

func TestStripeFilter(t *testing.T) {
	s, err := NewHash(nil, 4)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		f := s.StripeFilter(i)
		assert.True(t, f.IsStable())
		assert.Equal(t, fmt.Sprintf("hash%dof4", i), f.String())
	}

	for _, sym := range testSymbols {
		accepted := 0
		for i := 0; i < 4; i++ {
			if s.StripeFilter(i).Accept(nil, 0, sym) {
				accepted++
				assert.Equal(t, i, s.Index(0, sym))
			}
		}
		assert.Equal(t, 1, accepted, sym)
	}
}

func TestIntersectingStripes(t *testing.T) {
	s, err := NewHash(nil, 4)
	require.NoError(t, err)

	assert.Nil(t, s.IntersectingStripes(nil))
	assert.Nil(t, s.IntersectingStripes(filter.Any))

	own := s.IntersectingStripes(s.StripeFilter(2))
	assert.Equal(t, []bool{false, false, true, false}, own)
	assert.Equal(t, 1, CountStripes(own, 4))

	other, err := NewHash(nil, 8)
	require.NoError(t, err)
	assert.Nil(t, s.IntersectingStripes(other.StripeFilter(1)))

	set := s.IntersectingStripes(filter.Symbols(nil, "AAPL"))
	require.NotNil(t, set)
	assert.Equal(t, 1, CountStripes(set, 4))
	assert.True(t, set[s.Index(0, "AAPL")])

	assert.Nil(t, s.IntersectingStripes(filter.Symbols(nil, "AAPL", symbol.Wildcard)))

	unknown := filter.Func("custom", true, nil)
	assert.Nil(t, s.IntersectingStripes(unknown))
	assert.Equal(t, 4, CountStripes(nil, 4))
}
