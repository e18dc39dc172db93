package connection

import (
	"context"
	"net"
	"net/netip"

	"github.com/udisondev/pso2go/internal/crypto"
	"github.com/udisondev/pso2go/internal/protocol"
	"github.com/udisondev/pso2go/internal/variant"
)

// ReadHalf is the read side of a split Conn.
type ReadHalf struct {
	side  readSide
	peers chan variant.Variant
}

// WriteHalf is the write side of a split Conn.
type WriteHalf struct {
	side  writeSide
	peers chan variant.Variant
}

// Split separates c into halves that may run on different goroutines.
// A cipher installed by one half reaches the other before its next frame.
// c must not be used afterwards.
func (c *Conn) Split() (*ReadHalf, *WriteHalf) {
	toReader := make(chan crypto.Cipher, 1)
	toWriter := make(chan crypto.Cipher, 1)
	variantsToReader := make(chan variant.Variant, 1)
	variantsToWriter := make(chan variant.Variant, 1)

	rh := &ReadHalf{side: c.r, peers: variantsToWriter}
	wh := &WriteHalf{side: c.w, peers: variantsToReader}

	// уже установленный шифр делим пополам
	if cur := c.r.frames.Cipher(); cur != nil {
		enc, dec := cur.Split()
		rh.side.frames.cipher = dec
		wh.side.frames.cipher = enc
	}

	rh.side.ciphers, rh.side.variants = toReader, variantsToReader
	rh.side.share = func(x crypto.Cipher) (crypto.Cipher, error) {
		enc, dec := x.Split()
		offer(toWriter, enc)
		return dec, nil
	}
	wh.side.ciphers, wh.side.variants = toWriter, variantsToWriter
	wh.side.share = func(x crypto.Cipher) (crypto.Cipher, error) {
		enc, dec := x.Split()
		offer(toReader, dec)
		return enc, nil
	}
	return rh, wh
}

// ReadPacket blocks until a packet is available.
func (h *ReadHalf) ReadPacket() (protocol.Packet, error) {
	return h.side.next(context.Background(), false)
}

// PollPacket returns a buffered packet or ErrWouldBlock.
func (h *ReadHalf) PollPacket() (protocol.Packet, error) {
	return h.side.next(context.Background(), true)
}

// ReadPacketContext is ReadPacket bounded by ctx.
func (h *ReadHalf) ReadPacketContext(ctx context.Context) (protocol.Packet, error) {
	return h.side.next(ctx, false)
}

// ChangeVariant switches the variant of this half and, before its next frame, of the write half.
func (h *ReadHalf) ChangeVariant(v variant.Variant) error {
	h.side.variant = v
	offer(h.peers, v)
	return setSinkVariant(h.side.sink, v)
}

// Variant returns the variant of this half.
func (h *ReadHalf) Variant() variant.Variant {
	_ = h.side.sync()
	return h.side.variant
}

// Secret returns the handshake secret, nil before the handshake.
func (h *ReadHalf) Secret() []byte {
	_ = h.side.sync()
	return secretOf(h.side.frames.Cipher())
}

// RemoteAddr returns the peer address, nil when the transport has none.
func (h *ReadHalf) RemoteAddr() net.Addr { return remoteAddr(h.side.s.rw) }

// RemoteIP returns the IPv4 address of the peer or 0.0.0.0.
func (h *ReadHalf) RemoteIP() netip.Addr { return remoteIP(h.side.s.rw) }

// Close closes the transport shared with the write half.
func (h *ReadHalf) Close() error { return h.side.s.close() }

// QueuePacket encodes and encrypts p without writing it.
func (h *WriteHalf) QueuePacket(p protocol.Packet) error {
	return h.side.queue(p)
}

// WritePacket queues p and flushes.
func (h *WriteHalf) WritePacket(p protocol.Packet) error {
	if err := h.side.queue(p); err != nil {
		return err
	}
	return h.side.flush(context.Background())
}

// WritePacketContext is WritePacket bounded by ctx.
func (h *WriteHalf) WritePacketContext(ctx context.Context, p protocol.Packet) error {
	if err := h.side.queue(p); err != nil {
		return err
	}
	return h.side.flush(ctx)
}

// Flush writes every queued byte.
func (h *WriteHalf) Flush() error {
	return h.side.flush(context.Background())
}

// ChangeVariant switches the variant of this half and, before its next frame, of the read half.
func (h *WriteHalf) ChangeVariant(v variant.Variant) error {
	h.side.variant = v
	offer(h.peers, v)
	return setSinkVariant(h.side.sink, v)
}

// Variant returns the variant of this half.
func (h *WriteHalf) Variant() variant.Variant {
	h.side.sync()
	return h.side.variant
}

// Secret returns the handshake secret, nil before the handshake.
func (h *WriteHalf) Secret() []byte {
	h.side.sync()
	return secretOf(h.side.frames.Cipher())
}

// RemoteAddr returns the peer address, nil when the transport has none.
func (h *WriteHalf) RemoteAddr() net.Addr { return remoteAddr(h.side.s.rw) }

// Close closes the transport shared with the read half.
func (h *WriteHalf) Close() error { return h.side.s.close() }
