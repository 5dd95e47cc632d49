package bitfield

import (
	"encoding/hex"
	"math/bits"
)

// BitField tracks a set of piece indexes. Bit 0 is the most significant bit,
// matching the encoding of the bitfield message in the peer wire protocol.
type BitField struct {
	b      []byte
	length uint32
}

// New creates a new BitField of length bits, all clear.
func New(length uint32) BitField {
	return BitField{make([]byte, (length+7)/8), length}
}

// NewBytes returns a new BitField value from b.
// Bytes in b are not copied. Unused bits in last byte are cleared.
// Panics if b is not big enough to hold "length" bits.
func NewBytes(b []byte, length uint32) BitField {
	div, mod := divMod32(length, 8)
	requiredBytes := div
	if mod != 0 {
		requiredBytes++
	}
	if uint32(len(b)) < requiredBytes {
		panic("not enough bytes in slice for specified length")
	}
	if mod != 0 {
		b[requiredBytes-1] &= ^(0xff >> mod)
	}
	return BitField{b[:requiredBytes], length}
}

// Bytes returns the underlying slice. Modifying it modifies the bits too.
func (b BitField) Bytes() []byte { return b.b }

// Len returns the number of bits as given to New.
func (b BitField) Len() uint32 { return b.length }

// Hex returns bytes as string. Bits beyond Len encode as not set.
func (b BitField) Hex() string { return hex.EncodeToString(b.b) }

// Set bit i. Panics if i >= b.Len().
func (b BitField) Set(i uint32) {
	b.checkIndex(i)
	div, mod := divMod32(i, 8)
	b.b[div] |= 1 << (7 - mod)
}

// Clear bit i. Panics if i >= b.Len().
func (b BitField) Clear(i uint32) {
	b.checkIndex(i)
	div, mod := divMod32(i, 8)
	b.b[div] &= ^(1 << (7 - mod))
}

// Test bit i. Panics if i >= b.Len().
func (b BitField) Test(i uint32) bool {
	b.checkIndex(i)
	div, mod := divMod32(i, 8)
	return (b.b[div] & (1 << (7 - mod))) > 0
}

// Count returns the number of set bits.
func (b BitField) Count() uint32 {
	var total uint32
	for _, v := range b.b {
		total += uint32(bits.OnesCount8(v))
	}
	return total
}

// All returns true if all bits are set.
func (b BitField) All() bool {
	return b.Count() == b.length
}

func (b BitField) checkIndex(i uint32) {
	if i >= b.Len() {
		panic("bitfield index out of bound")
	}
}

func divMod32(a, b uint32) (uint32, uint32) { return a / b, a % b }
