package protocol

import (
	"fmt"

	"github.com/udisondev/pso2go/internal/codec"
	"github.com/udisondev/pso2go/internal/variant"
)

// Flags is the header flag byte.
type Flags struct {
	Packed        bool // 0x04
	Flag10        bool // 0x10
	FullMovement  bool // 0x20
	ObjectRelated bool // 0x40
	// Reserved holds the bits with no known meaning (0x01, 0x02, 0x08, 0x80).
	Reserved uint8
}

var (
	// FlagsPacked marks packets with magic-obfuscated variable fields.
	FlagsPacked = Flags{Packed: true}
	// FlagsObjectRelated marks packets addressed to a game object.
	FlagsObjectRelated = Flags{ObjectRelated: true}
)

func (f *Flags) bits() *codec.BitsValue[uint8] {
	return codec.Bits[uint8](codec.LowFirst,
		codec.Flag(&f.Packed).Skip(2),
		codec.Flag(&f.Flag10).Skip(1),
		codec.Flag(&f.FullMovement),
		codec.Flag(&f.ObjectRelated),
	).Reserved(&f.Reserved)
}

// Byte packs the flags.
func (f Flags) Byte() uint8 {
	return f.bits().Pack()
}

// FlagsFrom unpacks a flag byte.
func FlagsFrom(b uint8) Flags {
	var f Flags
	f.bits().Unpack(b)
	return f
}

// Header is the 4-byte packet header that follows the frame length.
//
// Legacy layout: category u8, sub-id u8, flags u8, padding u8.
// NGS layout:    flags u8, category u8, sub-id u16.
type Header struct {
	Category uint8
	SubID    uint16
	Flags    Flags
}

func (h Header) String() string {
	return fmt.Sprintf("(0x%02X, 0x%02X)", h.Category, h.SubID)
}

// ReadHeader reads a header in the layout of v.
func ReadHeader(r *codec.Reader, v variant.Variant) (Header, error) {
	var h Header
	if v.IsNGS() {
		flags, err := r.U8()
		if err != nil {
			return h, fmt.Errorf("reading flags: %w", err)
		}
		if h.Category, err = r.U8(); err != nil {
			return h, fmt.Errorf("reading category: %w", err)
		}
		if h.SubID, err = r.U16(); err != nil {
			return h, fmt.Errorf("reading sub-id: %w", err)
		}
		h.Flags = FlagsFrom(flags)
		return h, nil
	}

	var err error
	if h.Category, err = r.U8(); err != nil {
		return h, fmt.Errorf("reading category: %w", err)
	}
	sub, err := r.U8()
	if err != nil {
		return h, fmt.Errorf("reading sub-id: %w", err)
	}
	flags, err := r.U8()
	if err != nil {
		return h, fmt.Errorf("reading flags: %w", err)
	}
	if err := r.Skip(1); err != nil {
		return h, fmt.Errorf("reading header padding: %w", err)
	}
	h.SubID = uint16(sub)
	h.Flags = FlagsFrom(flags)
	return h, nil
}

// Write writes the header in the layout of v.
// The legacy layout cannot carry a sub-id above 0xFF.
func (h Header) Write(w *codec.Writer, v variant.Variant) error {
	if v.IsNGS() {
		w.U8(h.Flags.Byte())
		w.U8(h.Category)
		w.U16(h.SubID)
		return nil
	}
	if h.SubID > 0xFF {
		return &variant.UnsupportedError{
			Variant: v,
			What:    fmt.Sprintf("sub-id 0x%04X in the legacy header", h.SubID),
		}
	}
	w.U8(h.Category)
	w.U8(uint8(h.SubID))
	w.U8(h.Flags.Byte())
	w.U8(0)
	return nil
}
