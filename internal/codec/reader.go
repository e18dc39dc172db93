package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Reader provides bounds-checked reads over a frame buffer.
// Uses Little-Endian byte order for all multi-byte values.
type Reader struct {
	data []byte
	pos  int
}

// NewReader creates a new reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{
		data: data,
		pos:  0,
	}
}

func (r *Reader) need(op string, n int) error {
	if n < 0 || r.pos+n > len(r.data) {
		return fmt.Errorf("%s: not enough data (pos=%d, need=%d, len=%d): %w", op, r.pos, n, len(r.data), ErrShortBuffer)
	}
	return nil
}

// short reports a length prefix larger than the rest of the frame.
func (r *Reader) short(op string, n uint64) error {
	return fmt.Errorf("%s: not enough data (pos=%d, need=%d, len=%d): %w", op, r.pos, n, len(r.data), ErrShortBuffer)
}

// U8 reads a single byte.
func (r *Reader) U8() (uint8, error) {
	if err := r.need("U8", 1); err != nil {
		return 0, err
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// U16 reads a uint16 (2 bytes, LE).
func (r *Reader) U16() (uint16, error) {
	if err := r.need("U16", 2); err != nil {
		return 0, err
	}
	val := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return val, nil
}

// U32 reads a uint32 (4 bytes, LE).
func (r *Reader) U32() (uint32, error) {
	if err := r.need("U32", 4); err != nil {
		return 0, err
	}
	val := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return val, nil
}

// U64 reads a uint64 (8 bytes, LE).
func (r *Reader) U64() (uint64, error) {
	if err := r.need("U64", 8); err != nil {
		return 0, err
	}
	val := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return val, nil
}

// U128 reads a 16-byte little-endian integer.
func (r *Reader) U128() (Uint128, error) {
	if err := r.need("U128", 16); err != nil {
		return Uint128{}, err
	}
	val := Uint128{
		Lo: binary.LittleEndian.Uint64(r.data[r.pos:]),
		Hi: binary.LittleEndian.Uint64(r.data[r.pos+8:]),
	}
	r.pos += 16
	return val, nil
}

// F32 reads a float32 (4 bytes, LE).
func (r *Reader) F32() (float32, error) {
	bits, err := r.U32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

// F64 reads a float64 (8 bytes, LE).
func (r *Reader) F64() (float64, error) {
	bits, err := r.U64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

// Magic reads an obfuscated length: (v ^ xor) - sub.
func (r *Reader) Magic(xor, sub uint32) (uint32, error) {
	v, err := r.U32()
	if err != nil {
		return 0, err
	}
	return DecodeMagic(v, xor, sub), nil
}

// Bytes reads n bytes (ZERO-COPY: returns subslice of internal data).
// Caller MUST NOT modify returned bytes. Use BytesCopy() if mutation needed.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if err := r.need("Bytes", n); err != nil {
		return nil, err
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// BytesCopy reads n bytes and returns a mutable copy.
func (r *Reader) BytesCopy(n int) ([]byte, error) {
	b, err := r.Bytes(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// Skip advances the position by n bytes.
func (r *Reader) Skip(n int) error {
	if err := r.need("Skip", n); err != nil {
		return err
	}
	r.pos += n
	return nil
}

// Rest returns a copy of all unread bytes and moves to the end.
func (r *Reader) Rest() []byte {
	out := make([]byte, len(r.data)-r.pos)
	copy(out, r.data[r.pos:])
	r.pos = len(r.data)
	return out
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

// Position returns the current read position.
func (r *Reader) Position() int {
	return r.pos
}

// Advance moves the position forward by n bytes, stopping at the end of the data.
// Seek directives and trailing padding use it: a frame may legally end before them.
func (r *Reader) Advance(n int) {
	r.pos = min(r.pos+max(n, 0), len(r.data))
}

// skipPadding skips the bytes needed to align consumed to 4.
func (r *Reader) skipPadding(consumed int) error {
	r.Advance(padding(consumed))
	return nil
}
