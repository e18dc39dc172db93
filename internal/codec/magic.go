package codec

import (
	"math"
	"math/bits"
)

// EncodeMagic obfuscates a length or count: (v + sub) ^ xor, wrapping on overflow.
func EncodeMagic(v, xor, sub uint32) uint32 {
	return (v + sub) ^ xor
}

// DecodeMagic reverses EncodeMagic: (v ^ xor) - sub, wrapping on underflow.
func DecodeMagic(v, xor, sub uint32) uint32 {
	return (v ^ xor) - sub
}

// Uint128 is a 16-byte little-endian integer.
type Uint128 struct {
	Lo uint64
	Hi uint64
}

// Uint128From widens a uint64.
func Uint128From(v uint64) Uint128 {
	return Uint128{Lo: v}
}

// Float16 holds the raw bits of an IEEE 754 half-precision float.
type Float16 uint16

// Float32 converts the half to a float32.
func (h Float16) Float32() float32 {
	sign := uint32(h>>15) << 31
	exp := uint32(h>>10) & 0x1F
	frac := uint32(h) & 0x3FF

	switch {
	case exp == 0x1F:
		// Inf / NaN
		return math.Float32frombits(sign | 0xFF<<23 | frac<<13)
	case exp == 0 && frac == 0:
		return math.Float32frombits(sign)
	case exp == 0:
		// subnormal: normalise the fraction
		shift := uint32(bits.LeadingZeros32(frac)) - 21
		frac = (frac << shift) & 0x3FF
		exp = 1 - shift
	}
	return math.Float32frombits(sign | (exp+127-15)<<23 | frac<<13)
}

// Float16From converts a float32 to the nearest half (round to nearest even).
func Float16From(f float32) Float16 {
	b := math.Float32bits(f)
	sign := uint16(b>>16) & 0x8000
	exp := int32(b>>23) & 0xFF
	frac := b & 0x7FFFFF

	if exp == 0xFF {
		if frac != 0 {
			return Float16(sign | 0x7E00)
		}
		return Float16(sign | 0x7C00)
	}

	e := exp - 127 + 15
	switch {
	case e >= 0x1F:
		return Float16(sign | 0x7C00)
	case e <= 0:
		if e < -10 {
			return Float16(sign)
		}
		frac |= 0x800000
		shift := uint32(14 - e)
		half := frac >> shift
		rem := frac & (1<<shift - 1)
		mid := uint32(1) << (shift - 1)
		if rem > mid || (rem == mid && half&1 == 1) {
			half++
		}
		return Float16(sign | uint16(half))
	}

	half := uint32(e)<<10 | frac>>13
	rem := frac & 0x1FFF
	if rem > 0x1000 || (rem == 0x1000 && half&1 == 1) {
		half++
	}
	return Float16(sign | uint16(half))
}
