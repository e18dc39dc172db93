package protocol

import (
	"net/netip"
	"testing"

	"github.com/udisondev/pso2go/internal/variant"
)

func benchShipList() *ShipList {
	ships := make([]ShipEntry, 10)
	for i := range ships {
		ships[i] = ShipEntry{
			ID:     uint32(i + 1),
			Name:   "Ship",
			IP:     netip.AddrFrom4([4]byte{127, 0, 0, 1}),
			Status: ShipOnline,
			Order:  uint16(i),
		}
	}
	return &ShipList{Ships: ships}
}

// BenchmarkEncode_ShipList measures encoding of a typical packed packet.
func BenchmarkEncode_ShipList(b *testing.B) {
	p := benchShipList()

	b.ReportAllocs()
	b.ResetTimer()

	for b.Loop() {
		if _, err := Encode(p, variant.NGS); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkDecode_ShipList measures dispatch and decoding of the same frame.
func BenchmarkDecode_ShipList(b *testing.B) {
	frame, err := Encode(benchShipList(), variant.NGS)
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()

	for b.Loop() {
		if _, err := Decode(frame, variant.NGS); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkDecode_Unknown measures the fallback path.
func BenchmarkDecode_Unknown(b *testing.B) {
	frame := []byte{0x10, 0, 0, 0, 0x99, 0x01, 0, 0, 1, 2, 3, 4, 5, 6, 7, 8}

	b.ReportAllocs()
	b.ResetTimer()

	for b.Loop() {
		if _, err := Decode(frame, variant.Classic); err != nil {
			b.Fatal(err)
		}
	}
}
