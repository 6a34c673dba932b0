// Package symbol encodes short instrument symbols into integer ciphers so that
// hot paths can compare and route symbols without touching strings.
//
// A cipher of zero means "not encoded": the record carries its symbol as a
// string instead. Every non-zero cipher decodes back to exactly one symbol.
package symbol

// Wildcard is the reserved symbol that subscribes to every symbol of a record type.
const Wildcard = "*"

// Codec converts symbols to ciphers and back.
type Codec interface {
	// Encode returns the cipher for symbol, or 0 if it cannot be encoded.
	Encode(symbol string) int
	// EncodeBytes is Encode for a raw character range.
	EncodeBytes(chars []byte) int
	// Decode returns the symbol for a non-zero cipher.
	Decode(cipher int) string
	// WildcardCipher returns the cipher of the wildcard symbol.
	WildcardCipher() int
}

const (
	compactAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789./$_-=+:*#&!^%@"
	compactBits     = 6
	compactMaxLen   = 5
	compactMarker   = 1 << (compactBits * compactMaxLen)
)

// Compact packs symbols of up to five characters from a fixed alphabet into
// 6-bit groups. Longer symbols and symbols with other characters are left
// unencoded.
type Compact struct {
	codes    [256]byte
	wildcard int
}

// NewCompact creates the compact codec.
func NewCompact() *Compact {
	c := &Compact{}
	for i := 0; i < len(compactAlphabet); i++ {
		c.codes[compactAlphabet[i]] = byte(i + 1)
	}
	c.wildcard = c.Encode(Wildcard)
	return c
}

// Default is the codec used when a scheme does not name one.
var Default Codec = NewCompact()

// Encode implements Codec.
func (c *Compact) Encode(symbol string) int {
	n := len(symbol)
	if n == 0 || n > compactMaxLen {
		return 0
	}
	code := 0
	for i := 0; i < n; i++ {
		v := c.codes[symbol[i]]
		if v == 0 {
			return 0
		}
		code |= int(v) << (compactBits * (compactMaxLen - 1 - i))
	}
	return code | compactMarker
}

// EncodeBytes implements Codec.
func (c *Compact) EncodeBytes(chars []byte) int {
	n := len(chars)
	if n == 0 || n > compactMaxLen {
		return 0
	}
	code := 0
	for i := 0; i < n; i++ {
		v := c.codes[chars[i]]
		if v == 0 {
			return 0
		}
		code |= int(v) << (compactBits * (compactMaxLen - 1 - i))
	}
	return code | compactMarker
}

// Decode implements Codec.
func (c *Compact) Decode(cipher int) string {
	if cipher&compactMarker == 0 {
		return ""
	}
	var buf [compactMaxLen]byte
	n := 0
	for i := 0; i < compactMaxLen; i++ {
		v := (cipher >> (compactBits * (compactMaxLen - 1 - i))) & (1<<compactBits - 1)
		if v == 0 {
			break
		}
		buf[n] = compactAlphabet[v-1]
		n++
	}
	return string(buf[:n])
}

// WildcardCipher implements Codec.
func (c *Compact) WildcardCipher() int {
	return c.wildcard
}
