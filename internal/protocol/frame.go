package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/udisondev/pso2go/internal/codec"
	"github.com/udisondev/pso2go/internal/constants"
	"github.com/udisondev/pso2go/internal/metrics"
	"github.com/udisondev/pso2go/internal/variant"
)

var (
	// ErrFrameLength is returned when a frame declares a length smaller than its prefix
	// or larger than the data that follows it.
	ErrFrameLength = errors.New("invalid frame length")
)

// Decode splits buf into frames and decodes each of them.
//
// Decoding stops when 4 bytes or fewer remain; those bytes are ignored.
// A malformed frame aborts decoding: the packets decoded so far are returned with the error.
func Decode(buf []byte, v variant.Variant) ([]Packet, error) {
	return decode(buf, codec.Context{Variant: v})
}

// DecodeVerbatim is Decode with string NUL truncation disabled, so that
// re-encoding with EncodeVerbatim reproduces the input bytes.
func DecodeVerbatim(buf []byte, v variant.Variant) ([]Packet, error) {
	return decode(buf, codec.Context{Variant: v, Verbatim: true})
}

func decode(buf []byte, ctx codec.Context) ([]Packet, error) {
	var packets []Packet
	p := 0
	for len(buf)-p > constants.FrameLengthSize {
		total := binary.LittleEndian.Uint32(buf[p:])
		if total < constants.FrameLengthSize {
			return packets, fmt.Errorf("frame at offset %d declares %d bytes: %w", p, total, ErrFrameLength)
		}
		n := int(total) - constants.FrameLengthSize
		body := buf[p+constants.FrameLengthSize:]
		if len(body) < n {
			return packets, fmt.Errorf("frame at offset %d declares %d bytes, %d available: %w",
				p, total, len(body)+constants.FrameLengthSize, ErrFrameLength)
		}

		pkt, err := decodeFrame(buf[p:p+constants.FrameLengthSize+n], body[:n], ctx)
		if err != nil {
			return packets, err
		}
		packets = append(packets, pkt)
		p += constants.FrameLengthSize + n
	}
	return packets, nil
}

func decodeFrame(frame, body []byte, ctx codec.Context) (Packet, error) {
	metrics.Default().FramesDecoded.WithLabelValues(ctx.Variant.String()).Inc()

	if ctx.Variant == variant.Raw {
		return &Raw{Data: append([]byte(nil), frame...)}, nil
	}

	r := codec.NewReader(body)
	h, err := ReadHeader(r, ctx.Variant)
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	e := lookup(h.Category, h.SubID, ctx.Variant)
	if e == nil {
		metrics.Default().UnknownPackets.WithLabelValues(fmt.Sprintf("0x%02X", h.Category)).Inc()
		return &Unknown{Header: h, Data: r.Rest()}, nil
	}

	pkt := e.new()
	if err := codec.Unmarshal(r, ctx, pkt); err != nil {
		return nil, fmt.Errorf("decoding %s %s: %w", e.name, h, err)
	}
	if unread := body[r.Position():]; !isPadding(unread) {
		slog.Warn("packet left unread bytes",
			"packet", e.name,
			"header", h.String(),
			"variant", ctx.Variant,
			"unread", len(unread))
		metrics.Default().TrailingBytes.WithLabelValues(e.name).Inc()
	}
	return pkt, nil
}

// isPadding reports whether b is frame alignment: fewer than 4 zero bytes.
func isPadding(b []byte) bool {
	if len(b) >= constants.FrameAlign {
		return false
	}
	for _, x := range b {
		if x != 0 {
			return false
		}
	}
	return true
}

// Encode writes p as one frame. Empty encodes to nil.
func Encode(p Packet, v variant.Variant) ([]byte, error) {
	return encode(p, codec.Context{Variant: v})
}

// EncodeVerbatim is Encode without terminator insertion for strings.
func EncodeVerbatim(p Packet, v variant.Variant) ([]byte, error) {
	return encode(p, codec.Context{Variant: v, Verbatim: true})
}

func encode(p Packet, ctx codec.Context) ([]byte, error) {
	w := codec.Get()
	defer w.Put()
	w.Zero(constants.FrameLengthSize)

	switch p := p.(type) {
	case nil, Empty, *Empty:
		return nil, nil
	case *Raw:
		if len(p.Data) < constants.FrameLengthSize {
			return nil, fmt.Errorf("raw frame of %d bytes: %w", len(p.Data), ErrFrameLength)
		}
		_, _ = w.Write(p.Data[constants.FrameLengthSize:])
	case *Unknown:
		if err := p.Header.Write(w, ctx.Variant); err != nil {
			return nil, fmt.Errorf("writing header %s: %w", p.Header, err)
		}
		_, _ = w.Write(p.Data)
	case Payload:
		e, ok := byType[reflect.TypeOf(p)]
		if !ok {
			return nil, fmt.Errorf("%T has no table entry", p)
		}
		if !e.variants.Has(ctx.Variant) {
			return nil, &variant.UnsupportedError{Variant: ctx.Variant, What: e.name}
		}
		if err := e.header().Write(w, ctx.Variant); err != nil {
			return nil, fmt.Errorf("writing header of %s: %w", e.name, err)
		}
		if err := codec.Marshal(w, ctx, p); err != nil {
			return nil, fmt.Errorf("encoding %s: %w", e.name, err)
		}
	default:
		return nil, fmt.Errorf("%T is not a packet", p)
	}

	w.Pad(w.Len())
	out := make([]byte, w.Len())
	copy(out, w.Bytes())
	binary.LittleEndian.PutUint32(out, uint32(len(out)))
	return out, nil
}

// EncodeAll concatenates the frames of packets.
func EncodeAll(packets []Packet, v variant.Variant) ([]byte, error) {
	var out []byte
	for _, p := range packets {
		frame, err := Encode(p, v)
		if err != nil {
			return nil, err
		}
		out = append(out, frame...)
	}
	return out, nil
}
