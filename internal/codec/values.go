package codec

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"slices"
	"time"

	"github.com/udisondev/pso2go/internal/constants"
)

// Integer is any fixed-width integer, including named enum types.
type Integer interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 | ~int8 | ~int16 | ~int32 | ~int64
}

// Unsigned is any fixed-width unsigned integer.
type Unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

func sizeOf[T Integer]() int {
	var z T
	return binary.Size(z)
}

func (r *Reader) uint(size int) (uint64, error) {
	switch size {
	case 1:
		v, err := r.U8()
		return uint64(v), err
	case 2:
		v, err := r.U16()
		return uint64(v), err
	case 4:
		v, err := r.U32()
		return uint64(v), err
	default:
		return r.U64()
	}
}

func (w *Writer) uint(size int, v uint64) {
	switch size {
	case 1:
		w.U8(uint8(v))
	case 2:
		w.U16(uint16(v))
	case 4:
		w.U32(uint32(v))
	default:
		w.U64(v)
	}
}

// ----------------------------------------------------------------
// Scalars
// ----------------------------------------------------------------

type integer[T Integer] struct {
	p    *T
	size int
}

func (v integer[T]) Read(r *Reader, _ Context) error {
	x, err := r.uint(v.size)
	if err != nil {
		return err
	}
	*v.p = T(x)
	return nil
}

func (v integer[T]) Write(w *Writer, _ Context) error {
	w.uint(v.size, uint64(*v.p))
	return nil
}

func (v integer[T]) Reset() { *v.p = 0 }

// Int binds any fixed-width integer, including named types.
func Int[T Integer](p *T) Value { return integer[T]{p: p, size: sizeOf[T]()} }

func U8(p *uint8) Value   { return integer[uint8]{p: p, size: 1} }
func U16(p *uint16) Value { return integer[uint16]{p: p, size: 2} }
func U32(p *uint32) Value { return integer[uint32]{p: p, size: 4} }
func U64(p *uint64) Value { return integer[uint64]{p: p, size: 8} }
func I8(p *int8) Value    { return integer[int8]{p: p, size: 1} }
func I16(p *int16) Value  { return integer[int16]{p: p, size: 2} }
func I32(p *int32) Value  { return integer[int32]{p: p, size: 4} }
func I64(p *int64) Value  { return integer[int64]{p: p, size: 8} }

type u128Value struct{ p *Uint128 }

func (v u128Value) Read(r *Reader, _ Context) error {
	x, err := r.U128()
	if err != nil {
		return err
	}
	*v.p = x
	return nil
}

func (v u128Value) Write(w *Writer, _ Context) error {
	w.U128(*v.p)
	return nil
}

func (v u128Value) Reset() { *v.p = Uint128{} }

// U128 binds a 16-byte integer.
func U128(p *Uint128) Value { return u128Value{p: p} }

type f16Value struct{ p *Float16 }

func (v f16Value) Read(r *Reader, _ Context) error {
	x, err := r.U16()
	if err != nil {
		return err
	}
	*v.p = Float16(x)
	return nil
}

func (v f16Value) Write(w *Writer, _ Context) error {
	w.U16(uint16(*v.p))
	return nil
}

func (v f16Value) Reset() { *v.p = 0 }

// F16 binds a half-precision float.
func F16(p *Float16) Value { return f16Value{p: p} }

type f32Value struct{ p *float32 }

func (v f32Value) Read(r *Reader, _ Context) error {
	x, err := r.F32()
	if err != nil {
		return err
	}
	*v.p = x
	return nil
}

func (v f32Value) Write(w *Writer, _ Context) error {
	w.F32(*v.p)
	return nil
}

func (v f32Value) Reset() { *v.p = 0 }

// F32 binds a float32.
func F32(p *float32) Value { return f32Value{p: p} }

type f64Value struct{ p *float64 }

func (v f64Value) Read(r *Reader, _ Context) error {
	x, err := r.F64()
	if err != nil {
		return err
	}
	*v.p = x
	return nil
}

func (v f64Value) Write(w *Writer, _ Context) error {
	w.F64(*v.p)
	return nil
}

func (v f64Value) Reset() { *v.p = 0 }

// F64 binds a float64.
func F64(p *float64) Value { return f64Value{p: p} }

// ----------------------------------------------------------------
// Addresses and time
// ----------------------------------------------------------------

type ipv4Value struct{ p *netip.Addr }

func (v ipv4Value) Read(r *Reader, _ Context) error {
	b, err := r.Bytes(4)
	if err != nil {
		return err
	}
	*v.p = netip.AddrFrom4([4]byte(b))
	return nil
}

func (v ipv4Value) Write(w *Writer, _ Context) error {
	if !v.p.IsValid() {
		w.Zero(4)
		return nil
	}
	if !v.p.Is4() {
		return fmt.Errorf("address %s is not IPv4", v.p)
	}
	ip := v.p.As4()
	_, _ = w.Write(ip[:])
	return nil
}

func (v ipv4Value) Reset() { *v.p = netip.Addr{} }

// IPv4 binds a 4-byte IPv4 address in network order.
func IPv4(p *netip.Addr) Value { return ipv4Value{p: p} }

type winTimeValue struct{ p *time.Time }

func (v winTimeValue) Read(r *Reader, _ Context) error {
	ms, err := r.U64()
	if err != nil {
		return err
	}
	*v.p = time.UnixMilli(int64(ms - constants.WinTimeUnixOffset)).UTC()
	return nil
}

func (v winTimeValue) Write(w *Writer, _ Context) error {
	w.U64(uint64(v.p.UnixMilli()) + constants.WinTimeUnixOffset)
	return nil
}

func (v winTimeValue) Reset() { *v.p = time.Time{} }

// WinTime binds a u64 millisecond timestamp on the game clock
// (Unix milliseconds shifted by constants.WinTimeUnixOffset).
func WinTime(p *time.Time) Value { return winTimeValue{p: p} }

type unixTimeValue struct{ p *time.Time }

func (v unixTimeValue) Read(r *Reader, _ Context) error {
	s, err := r.U32()
	if err != nil {
		return err
	}
	if s == 0 {
		*v.p = time.Time{}
		return nil
	}
	*v.p = time.Unix(int64(s), 0).UTC()
	return nil
}

func (v unixTimeValue) Write(w *Writer, _ Context) error {
	if v.p.IsZero() {
		w.U32(0)
		return nil
	}
	w.U32(uint32(v.p.Unix()))
	return nil
}

func (v unixTimeValue) Reset() { *v.p = time.Time{} }

// UnixTime binds a u32 Unix timestamp in seconds.
// 0 on the wire maps to the zero time.Time.
func UnixTime(p *time.Time) Value { return unixTimeValue{p: p} }

// ----------------------------------------------------------------
// Enums and constants
// ----------------------------------------------------------------

type enumValue[T Integer] struct {
	p     *T
	size  int
	def   T
	known []T
}

func (v enumValue[T]) Read(r *Reader, _ Context) error {
	x, err := r.uint(v.size)
	if err != nil {
		return err
	}
	d := T(x)
	if !slices.Contains(v.known, d) {
		d = v.def
	}
	*v.p = d
	return nil
}

func (v enumValue[T]) Write(w *Writer, _ Context) error {
	w.uint(v.size, uint64(*v.p))
	return nil
}

func (v enumValue[T]) Reset() { *v.p = v.def }

// Enum binds an enumerated value. Discriminants outside known decode to def.
func Enum[T Integer](p *T, def T, known ...T) Value {
	return enumValue[T]{p: p, size: sizeOf[T](), def: def, known: known}
}

type enum128Value struct {
	p     *Uint128
	def   Uint128
	known []Uint128
}

func (v enum128Value) Read(r *Reader, _ Context) error {
	x, err := r.U128()
	if err != nil {
		return err
	}
	if !slices.Contains(v.known, x) {
		x = v.def
	}
	*v.p = x
	return nil
}

func (v enum128Value) Write(w *Writer, _ Context) error {
	w.U128(*v.p)
	return nil
}

func (v enum128Value) Reset() { *v.p = v.def }

// Enum128 binds an enumerated value backed by a 16-byte integer.
func Enum128(p *Uint128, def Uint128, known ...Uint128) Value {
	return enum128Value{p: p, def: def, known: known}
}

type constValue[T Unsigned] struct {
	want T
	size int
}

func (v constValue[T]) Read(r *Reader, _ Context) error {
	x, err := r.uint(v.size)
	if err != nil {
		return err
	}
	if T(x) != v.want {
		return &ConstantMismatchError{Want: uint64(v.want), Got: x}
	}
	return nil
}

func (v constValue[T]) Write(w *Writer, _ Context) error {
	w.uint(v.size, uint64(v.want))
	return nil
}

func (v constValue[T]) Reset() {}

// Const expects a fixed value on read and always writes it.
func Const[T Unsigned](want T) Value {
	return constValue[T]{want: want, size: binary.Size(want)}
}

// ----------------------------------------------------------------
// Bit flags
// ----------------------------------------------------------------

// BitOrder selects how bit positions map onto the backing integer.
type BitOrder uint8

const (
	// LowFirst assigns the first flag to the least significant bit.
	LowFirst BitOrder = iota
	// HighFirst assigns the first flag to the most significant bit.
	HighFirst
)

// Bit is one named flag of a bit-flag struct.
type Bit struct {
	p    *bool
	skip int
}

// Flag declares a flag.
func Flag(p *bool) Bit { return Bit{p: p} }

// Skip leaves n reserved bits before the flag.
func (b Bit) Skip(n int) Bit {
	b.skip = n
	return b
}

// BitsValue packs flags into a fixed-width integer.
type BitsValue[T Unsigned] struct {
	order    BitOrder
	bits     []Bit
	reserved *T
}

// Bits binds a bit-flag struct backed by T.
func Bits[T Unsigned](order BitOrder, bits ...Bit) *BitsValue[T] {
	return &BitsValue[T]{order: order, bits: bits}
}

// Reserved keeps the bits no flag maps to, so they survive a round trip.
func (v *BitsValue[T]) Reserved(p *T) *BitsValue[T] {
	v.reserved = p
	return v
}

func (v *BitsValue[T]) mask(pos int) T {
	width := sizeOf[T]() * 8
	if v.order == HighFirst {
		return T(1) << (width - 1 - pos)
	}
	return T(1) << pos
}

// Unpack assigns the flags from x.
func (v *BitsValue[T]) Unpack(x T) {
	pos := 0
	var mapped T
	for _, b := range v.bits {
		pos += b.skip
		m := v.mask(pos)
		mapped |= m
		*b.p = x&m != 0
		pos++
	}
	if v.reserved != nil {
		*v.reserved = x &^ mapped
	}
}

// Pack builds the integer from the flags.
func (v *BitsValue[T]) Pack() T {
	var x T
	pos := 0
	for _, b := range v.bits {
		pos += b.skip
		if *b.p {
			x |= v.mask(pos)
		}
		pos++
	}
	if v.reserved != nil {
		x |= *v.reserved
	}
	return x
}

func (v *BitsValue[T]) Read(r *Reader, _ Context) error {
	x, err := r.uint(sizeOf[T]())
	if err != nil {
		return err
	}
	v.Unpack(T(x))
	return nil
}

func (v *BitsValue[T]) Write(w *Writer, _ Context) error {
	w.uint(sizeOf[T](), uint64(v.Pack()))
	return nil
}

func (v *BitsValue[T]) Reset() {
	for _, b := range v.bits {
		*b.p = false
	}
	if v.reserved != nil {
		*v.reserved = 0
	}
}
