package codec

import (
	"fmt"
)

// ----------------------------------------------------------------
// Strings
// ----------------------------------------------------------------

type stringValue struct {
	p     *string
	ascii bool
	fixed int
}

func (v stringValue) Read(r *Reader, ctx Context) error {
	var (
		s   string
		err error
	)
	switch {
	case v.fixed > 0 && v.ascii:
		s, err = r.ReadFixedASCII(v.fixed, ctx.Verbatim)
	case v.fixed > 0:
		s, err = r.ReadFixedUTF16(v.fixed, ctx.Verbatim)
	case v.ascii:
		s, err = r.ReadVarASCII(ctx.Xor, ctx.Sub, ctx.Verbatim)
	default:
		s, err = r.ReadVarUTF16(ctx.Xor, ctx.Sub, ctx.Verbatim)
	}
	if err != nil {
		return err
	}
	*v.p = s
	return nil
}

func (v stringValue) Write(w *Writer, ctx Context) error {
	switch {
	case v.fixed > 0 && v.ascii:
		w.WriteFixedASCII(*v.p, v.fixed, ctx.Verbatim)
	case v.fixed > 0:
		w.WriteFixedUTF16(*v.p, v.fixed, ctx.Verbatim)
	case v.ascii:
		w.WriteVarASCII(*v.p, ctx.Xor, ctx.Sub, ctx.Verbatim)
	default:
		w.WriteVarUTF16(*v.p, ctx.Xor, ctx.Sub, ctx.Verbatim)
	}
	return nil
}

func (v stringValue) Reset() { *v.p = "" }

// String binds a magic-prefixed UTF-16LE string.
func String(p *string) Value { return stringValue{p: p} }

// ASCII binds a magic-prefixed single-byte string.
func ASCII(p *string) Value { return stringValue{p: p, ascii: true} }

// FixedString binds a UTF-16LE string of exactly n code units.
func FixedString(p *string, n int) Value { return stringValue{p: p, fixed: n} }

// FixedASCII binds a single-byte string of exactly n bytes.
func FixedASCII(p *string, n int) Value { return stringValue{p: p, ascii: true, fixed: n} }

// ----------------------------------------------------------------
// Byte buffers
// ----------------------------------------------------------------

type bytesValue struct {
	p         *[]byte
	noPadding bool
}

func (v bytesValue) Read(r *Reader, ctx Context) error {
	n, err := r.Magic(ctx.Xor, ctx.Sub)
	if err != nil {
		return err
	}
	if uint64(n) > uint64(r.Remaining()) {
		return r.short("Bytes", uint64(n))
	}
	b, err := r.BytesCopy(int(n))
	if err != nil {
		return err
	}
	if !v.noPadding {
		if err := r.skipPadding(len(b)); err != nil {
			return err
		}
	}
	*v.p = b
	return nil
}

func (v bytesValue) Write(w *Writer, ctx Context) error {
	w.Magic(uint32(len(*v.p)), ctx.Xor, ctx.Sub)
	_, _ = w.Write(*v.p)
	if !v.noPadding {
		w.Pad(len(*v.p))
	}
	return nil
}

func (v bytesValue) Reset() { *v.p = nil }

// Bytes binds a magic-prefixed byte buffer padded to 4.
func Bytes(p *[]byte) Value { return bytesValue{p: p} }

// BytesNoPadding binds a magic-prefixed byte buffer without trailing padding.
func BytesNoPadding(p *[]byte) Value { return bytesValue{p: p, noPadding: true} }

type fixedBytesValue struct {
	b      []byte
	padded bool
}

func (v fixedBytesValue) Read(r *Reader, _ Context) error {
	src, err := r.Bytes(len(v.b))
	if err != nil {
		return err
	}
	copy(v.b, src)
	if v.padded {
		return r.skipPadding(len(v.b))
	}
	return nil
}

func (v fixedBytesValue) Write(w *Writer, _ Context) error {
	_, _ = w.Write(v.b)
	if v.padded {
		w.Pad(len(v.b))
	}
	return nil
}

func (v fixedBytesValue) Reset() { clear(v.b) }

// FixedBytes binds a byte array of known length: b is read into and written as is.
// Typically called with an array field sliced in place: FixedBytes(p.Unk[:]).
func FixedBytes(b []byte) Value { return fixedBytesValue{b: b} }

// PaddedBytes is FixedBytes followed by padding to 4.
func PaddedBytes(b []byte) Value { return fixedBytesValue{b: b, padded: true} }

type restValue struct{ p *[]byte }

func (v restValue) Read(r *Reader, _ Context) error {
	*v.p = r.Rest()
	return nil
}

func (v restValue) Write(w *Writer, _ Context) error {
	_, _ = w.Write(*v.p)
	return nil
}

func (v restValue) Reset() { *v.p = nil }

// Rest binds every remaining byte of the frame.
func Rest(p *[]byte) Value { return restValue{p: p} }

// ----------------------------------------------------------------
// Nested structs and sequences
// ----------------------------------------------------------------

type nestedValue struct{ s Schema }

func (v nestedValue) Read(r *Reader, ctx Context) error {
	return Unmarshal(r, ctx, v.s)
}

func (v nestedValue) Write(w *Writer, ctx Context) error {
	return Marshal(w, ctx, v.s)
}

func (v nestedValue) Reset() {
	for _, f := range v.s.Fields() {
		f.Value.Reset()
	}
}

// Struct binds a nested struct.
func Struct(s Schema) Value { return nestedValue{s: s} }

// Nested adapts a struct type to an element constructor for Seq and Array:
// Seq(&p.Missions, Nested[Mission]).
func Nested[T any, PT interface {
	*T
	Schema
}](p PT) Value {
	return nestedValue{s: p}
}

// LenPrefix selects how a sequence length is written.
type LenPrefix uint8

const (
	// LenMagic is a magic-obfuscated u32 count (the protocol default).
	LenMagic LenPrefix = iota
	// LenU8 is a plain u8 count.
	LenU8
	// LenU16 is a plain u16 count.
	LenU16
	// LenU32 is a plain u32 count.
	LenU32
)

type seqValue[T any] struct {
	p      *[]T
	elem   func(*T) Value
	prefix LenPrefix
}

func (v seqValue[T]) readLen(r *Reader, ctx Context) (uint32, error) {
	switch v.prefix {
	case LenU8:
		n, err := r.U8()
		return uint32(n), err
	case LenU16:
		n, err := r.U16()
		return uint32(n), err
	case LenU32:
		return r.U32()
	default:
		return r.Magic(ctx.Xor, ctx.Sub)
	}
}

func (v seqValue[T]) writeLen(w *Writer, ctx Context, n int) error {
	switch v.prefix {
	case LenU8:
		if n > 0xFF {
			return fmt.Errorf("sequence of %d elements overflows u8 length", n)
		}
		w.U8(uint8(n))
	case LenU16:
		if n > 0xFFFF {
			return fmt.Errorf("sequence of %d elements overflows u16 length", n)
		}
		w.U16(uint16(n))
	case LenU32:
		w.U32(uint32(n))
	default:
		w.Magic(uint32(n), ctx.Xor, ctx.Sub)
	}
	return nil
}

func (v seqValue[T]) Read(r *Reader, ctx Context) error {
	n, err := v.readLen(r, ctx)
	if err != nil {
		return err
	}
	// Каждый элемент занимает минимум байт, поэтому capacity ограничена остатком фрейма
	out := make([]T, 0, min(int(n), r.Remaining()))
	start := r.Position()
	for i := range int(n) {
		var e T
		if err := v.elem(&e).Read(r, ctx); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, e)
	}
	if err := r.skipPadding(r.Position() - start); err != nil {
		return err
	}
	*v.p = out
	return nil
}

func (v seqValue[T]) Write(w *Writer, ctx Context) error {
	if err := v.writeLen(w, ctx, len(*v.p)); err != nil {
		return err
	}
	start := w.Len()
	for i := range *v.p {
		if err := v.elem(&(*v.p)[i]).Write(w, ctx); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	w.Pad(w.Len() - start)
	return nil
}

func (v seqValue[T]) Reset() { *v.p = nil }

// Seq binds a magic-prefixed sequence; elements are padded to 4 as a whole.
func Seq[T any](p *[]T, elem func(*T) Value) Value {
	return seqValue[T]{p: p, elem: elem}
}

// SeqLen binds a sequence with a plain integer length prefix, padded to 4.
func SeqLen[T any](p *[]T, prefix LenPrefix, elem func(*T) Value) Value {
	return seqValue[T]{p: p, elem: elem, prefix: prefix}
}

type arrayValue[T any] struct {
	p    *[]T
	n    int
	elem func(*T) Value
}

func (v arrayValue[T]) Read(r *Reader, ctx Context) error {
	out := make([]T, v.n)
	for i := range out {
		if err := v.elem(&out[i]).Read(r, ctx); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	*v.p = out
	return nil
}

func (v arrayValue[T]) Write(w *Writer, ctx Context) error {
	src := *v.p
	for i := range v.n {
		var e T
		if i < len(src) {
			e = src[i]
		}
		if err := v.elem(&e).Write(w, ctx); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

func (v arrayValue[T]) Reset() { *v.p = make([]T, v.n) }

// Array binds exactly n elements without a length prefix.
// Short slices are completed with zero elements on write, long ones truncated.
func Array[T any](p *[]T, n int, elem func(*T) Value) Value {
	return arrayValue[T]{p: p, n: n, elem: elem}
}
