package codec

import (
	"bytes"
	"encoding/binary"
	"math"
	"sync"

	"github.com/udisondev/pso2go/internal/constants"
)

// Writer accumulates packet bytes.
// Uses Little-Endian byte order for all multi-byte values.
type Writer struct {
	buf *bytes.Buffer
}

// writerPool reduces allocations by reusing Writers.
// Get() returns a Writer with Reset() called, Put() returns it to pool.
var writerPool = sync.Pool{
	New: func() any {
		return &Writer{
			buf: bytes.NewBuffer(make([]byte, 0, constants.DefaultWriteBufSize)),
		}
	},
}

// Get returns a Writer from the pool (already Reset).
func Get() *Writer {
	w := writerPool.Get().(*Writer)
	w.Reset()
	return w
}

// Put returns a Writer to the pool for reuse.
// IMPORTANT: Do not use the Writer (or slices from Bytes) after calling Put.
func (w *Writer) Put() {
	writerPool.Put(w)
}

// NewWriter creates a new writer with the given initial capacity.
func NewWriter(capacity int) *Writer {
	return &Writer{
		buf: bytes.NewBuffer(make([]byte, 0, capacity)),
	}
}

// U8 writes a single byte.
func (w *Writer) U8(v uint8) {
	w.buf.WriteByte(v)
}

// U16 writes a uint16 (2 bytes, LE).
func (w *Writer) U16(v uint16) {
	w.buf.WriteByte(byte(v))
	w.buf.WriteByte(byte(v >> 8))
}

// U32 writes a uint32 (4 bytes, LE).
func (w *Writer) U32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.buf.Write(tmp[:])
}

// U64 writes a uint64 (8 bytes, LE).
func (w *Writer) U64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.buf.Write(tmp[:])
}

// U128 writes a 16-byte little-endian integer.
func (w *Writer) U128(v Uint128) {
	w.U64(v.Lo)
	w.U64(v.Hi)
}

// F32 writes a float32 (4 bytes, LE).
func (w *Writer) F32(v float32) {
	w.U32(math.Float32bits(v))
}

// F64 writes a float64 (8 bytes, LE).
func (w *Writer) F64(v float64) {
	w.U64(math.Float64bits(v))
}

// Magic writes an obfuscated length: (v + sub) ^ xor.
func (w *Writer) Magic(v, xor, sub uint32) {
	w.U32(EncodeMagic(v, xor, sub))
}

// Write appends raw bytes. Always returns len(p), nil.
func (w *Writer) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

// Zero writes n zero bytes.
func (w *Writer) Zero(n int) {
	for range n {
		w.buf.WriteByte(0)
	}
}

// Pad writes the zero bytes needed to align written to 4.
func (w *Writer) Pad(written int) {
	w.Zero(padding(written))
}

// Bytes returns the accumulated data.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the number of accumulated bytes.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Reset clears the buffer for reuse.
func (w *Writer) Reset() {
	w.buf.Reset()
}

// padding returns the number of bytes needed to round n up to a multiple of 4.
func padding(n int) int {
	return (constants.FrameAlign - n%constants.FrameAlign) % constants.FrameAlign
}
