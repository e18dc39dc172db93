package testutil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"
)

// AssertFrameLength проверяет, что префикс длины фрейма совпадает с его размером.
func AssertFrameLength(tb testing.TB, frame []byte) {
	tb.Helper()

	if len(frame) < 4 {
		tb.Fatalf("frame too short: %d bytes", len(frame))
	}
	if got := int(binary.LittleEndian.Uint32(frame)); got != len(frame) {
		tb.Fatalf("frame length prefix %d, frame is %d bytes", got, len(frame))
	}
	if len(frame)%4 != 0 {
		tb.Fatalf("frame of %d bytes is not 4-byte aligned", len(frame))
	}
}

// AssertLegacyHeader проверяет заголовок старого клиента: cat, sub, flags, 0.
func AssertLegacyHeader(tb testing.TB, frame []byte, category uint8, subID uint8, flags uint8) {
	tb.Helper()

	AssertFrameLength(tb, frame)
	want := []byte{category, subID, flags, 0}
	if !bytes.Equal(frame[4:8], want) {
		tb.Fatalf("legacy header mismatch: expected % x, got % x", want, frame[4:8])
	}
}

// AssertNGSHeader проверяет заголовок NGS: flags, cat, sub (u16 LE).
func AssertNGSHeader(tb testing.TB, frame []byte, category uint8, subID uint16, flags uint8) {
	tb.Helper()

	AssertFrameLength(tb, frame)
	want := binary.LittleEndian.AppendUint16([]byte{flags, category}, subID)
	if !bytes.Equal(frame[4:8], want) {
		tb.Fatalf("NGS header mismatch: expected % x, got % x", want, frame[4:8])
	}
}

// DumpFrame возвращает hex dump фрейма для отладки.
func DumpFrame(frame []byte) string {
	var buf bytes.Buffer
	for i := 0; i < len(frame); i += 16 {
		chunk := frame[i:min(i+16, len(frame))]
		fmt.Fprintf(&buf, "%04x  ", i)
		for j := range 16 {
			if j == 8 {
				buf.WriteString(" ")
			}
			if j < len(chunk) {
				fmt.Fprintf(&buf, "%02x ", chunk[j])
			} else {
				buf.WriteString("   ")
			}
		}
		buf.WriteString(" |")
		for _, b := range chunk {
			if b >= 0x20 && b < 0x7F {
				buf.WriteByte(b)
			} else {
				buf.WriteByte('.')
			}
		}
		buf.WriteString("|\n")
	}
	return buf.String()
}
