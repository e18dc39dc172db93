package codec

import (
	"bytes"
	"encoding/binary"
	"unicode/utf16"
)

// decodeUTF16 decodes UTF-16LE code units. Unless verbatim, content after the first
// zero code unit is discarded.
func decodeUTF16(raw []byte, verbatim bool) string {
	units := make([]uint16, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		u := binary.LittleEndian.Uint16(raw[i:])
		if u == 0 && !verbatim {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}

// encodeUTF16 encodes s as UTF-16LE code units.
func encodeUTF16(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

func putUTF16(w *Writer, units []uint16) {
	for _, u := range units {
		w.U16(u)
	}
}

// decodeASCII trims at the first NUL unless verbatim.
func decodeASCII(raw []byte, verbatim bool) string {
	if !verbatim {
		if i := bytes.IndexByte(raw, 0); i >= 0 {
			raw = raw[:i]
		}
	}
	return string(raw)
}

// ReadFixedUTF16 reads a UTF-16LE string of exactly n code units.
func (r *Reader) ReadFixedUTF16(n int, verbatim bool) (string, error) {
	raw, err := r.Bytes(n * 2)
	if err != nil {
		return "", err
	}
	return decodeUTF16(raw, verbatim), nil
}

// WriteFixedUTF16 writes s as exactly n UTF-16LE code units, zero-filled.
// Outside verbatim mode at most n-1 units are written so the string stays terminated.
func (w *Writer) WriteFixedUTF16(s string, n int, verbatim bool) {
	units := encodeUTF16(s)
	limit := n
	if !verbatim && limit > 0 {
		limit--
	}
	if len(units) > limit {
		units = units[:limit]
	}
	putUTF16(w, units)
	w.Zero((n - len(units)) * 2)
}

// ReadFixedASCII reads a single-byte string of exactly n bytes.
func (r *Reader) ReadFixedASCII(n int, verbatim bool) (string, error) {
	raw, err := r.Bytes(n)
	if err != nil {
		return "", err
	}
	return decodeASCII(raw, verbatim), nil
}

// WriteFixedASCII writes s as exactly n bytes, zero-filled.
func (w *Writer) WriteFixedASCII(s string, n int, verbatim bool) {
	limit := n
	if !verbatim && limit > 0 {
		limit--
	}
	if len(s) > limit {
		s = s[:limit]
	}
	_, _ = w.Write([]byte(s))
	w.Zero(n - len(s))
}

// ReadVarUTF16 reads a magic-prefixed UTF-16LE string and its padding.
func (r *Reader) ReadVarUTF16(xor, sub uint32, verbatim bool) (string, error) {
	n, err := r.Magic(xor, sub)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	if uint64(n)*2 > uint64(r.Remaining()) {
		return "", r.short("ReadVarUTF16", uint64(n)*2)
	}
	start := r.Position()
	s, err := r.ReadFixedUTF16(int(n), verbatim)
	if err != nil {
		return "", err
	}
	if err := r.skipPadding(r.Position() - start); err != nil {
		return "", err
	}
	return s, nil
}

// WriteVarUTF16 writes a magic-prefixed UTF-16LE string and its padding.
// The declared length counts the terminator; an empty string writes only the length.
func (w *Writer) WriteVarUTF16(s string, xor, sub uint32, verbatim bool) {
	if s == "" {
		w.Magic(0, xor, sub)
		return
	}
	units := encodeUTF16(s)
	if !verbatim {
		units = append(units, 0)
	}
	w.Magic(uint32(len(units)), xor, sub)
	putUTF16(w, units)
	w.Pad(len(units) * 2)
}

// ReadVarASCII reads a magic-prefixed single-byte string and its padding.
func (r *Reader) ReadVarASCII(xor, sub uint32, verbatim bool) (string, error) {
	n, err := r.Magic(xor, sub)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	if uint64(n) > uint64(r.Remaining()) {
		return "", r.short("ReadVarASCII", uint64(n))
	}
	raw, err := r.Bytes(int(n))
	if err != nil {
		return "", err
	}
	if err := r.skipPadding(len(raw)); err != nil {
		return "", err
	}
	return decodeASCII(raw, verbatim), nil
}

// WriteVarASCII writes a magic-prefixed single-byte string and its padding.
func (w *Writer) WriteVarASCII(s string, xor, sub uint32, verbatim bool) {
	if s == "" {
		w.Magic(0, xor, sub)
		return
	}
	n := len(s)
	if !verbatim {
		n++
	}
	w.Magic(uint32(n), xor, sub)
	_, _ = w.Write([]byte(s))
	if !verbatim {
		w.U8(0)
	}
	w.Pad(n)
}
