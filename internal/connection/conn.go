// Package connection turns a byte stream into a stream of packets.
//
// A Conn frames inbound bytes, decrypts and decodes them, encodes and encrypts
// outbound packets, and installs the session cipher when it sees the RSA
// handshake. A Conn is owned by one goroutine; Split it to read and write
// concurrently.
package connection

import (
	"context"
	"crypto/rsa"
	"fmt"
	"io"
	"net"
	"net/netip"

	"github.com/udisondev/pso2go/internal/capture"
	"github.com/udisondev/pso2go/internal/crypto"
	"github.com/udisondev/pso2go/internal/protocol"
	"github.com/udisondev/pso2go/internal/variant"
)

type options struct {
	privateKey    crypto.PrivateKeySource
	publicKey     crypto.PublicKeySource
	personalities crypto.Personalities
	compress      bool
	sink          capture.Sink
	direction     capture.Direction
}

// Option configures a Conn.
type Option func(*options)

// WithPrivateKey makes the Conn decrypt inbound handshakes with the key of src.
func WithPrivateKey(src crypto.PrivateKeySource) Option {
	return func(o *options) {
		o.privateKey = src
	}
}

// WithPublicKey makes the Conn re-encrypt outbound handshakes under the key of src.
func WithPublicKey(src crypto.PublicKeySource) Option {
	return func(o *options) {
		o.publicKey = src
	}
}

// WithPersonalities restricts the cipher personalities a handshake may select.
func WithPersonalities(p crypto.Personalities) Option {
	return func(o *options) {
		o.personalities = p
	}
}

// WithCompression enables zstd compression of outbound AES NGS frames.
func WithCompression(on bool) Option {
	return func(o *options) {
		o.compress = on
	}
}

// WithCapture records every plain frame into sink. dir is the direction of
// written frames; read frames are recorded with the opposite one.
func WithCapture(sink capture.Sink, dir capture.Direction) Option {
	return func(o *options) {
		o.sink = sink
		o.direction = dir
	}
}

// Conn is a packet connection over a byte stream.
type Conn struct {
	s *stream
	r readSide
	w writeSide
}

// New wraps rw. v is the variant used to decode and encode packets until ChangeVariant.
func New(rw io.ReadWriter, v variant.Variant, opts ...Option) (*Conn, error) {
	o := options{personalities: crypto.AllPersonalities}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		priv *rsa.PrivateKey
		pub  *rsa.PublicKey
		err  error
	)
	if o.privateKey != nil {
		if priv, err = o.privateKey.PrivateKey(); err != nil {
			return nil, fmt.Errorf("loading private key: %w", err)
		}
	}
	if o.publicKey != nil {
		if pub, err = o.publicKey.PublicKey(); err != nil {
			return nil, fmt.Errorf("loading public key: %w", err)
		}
	}

	c := &Conn{s: newStream(rw)}
	c.r = readSide{
		s:        c.s,
		variant:  v,
		key:      priv,
		enabled:  o.personalities,
		compress: o.compress,
		sink:     o.sink,
		dir:      o.direction.Flip(),
		share: func(x crypto.Cipher) (crypto.Cipher, error) {
			c.w.frames.SetCipher(x)
			return x, nil
		},
	}
	c.w = writeSide{
		s:        c.s,
		variant:  v,
		key:      pub,
		enabled:  o.personalities,
		compress: o.compress,
		sink:     o.sink,
		dir:      o.direction,
		share: func(x crypto.Cipher) (crypto.Cipher, error) {
			return x, c.r.frames.SetCipher(x)
		},
	}
	return c, nil
}

// ReadPacket blocks until a packet is available.
func (c *Conn) ReadPacket() (protocol.Packet, error) {
	return c.r.next(context.Background(), false)
}

// PollPacket returns a buffered packet or ErrWouldBlock when none is ready.
// Partially received frames are kept between calls.
func (c *Conn) PollPacket() (protocol.Packet, error) {
	return c.r.next(context.Background(), true)
}

// ReadPacketContext is ReadPacket bounded by ctx. Buffered bytes survive cancellation.
func (c *Conn) ReadPacketContext(ctx context.Context) (protocol.Packet, error) {
	return c.r.next(ctx, false)
}

// QueuePacket encodes and encrypts p without writing it.
func (c *Conn) QueuePacket(p protocol.Packet) error {
	return c.w.queue(p)
}

// WritePacket queues p and flushes.
func (c *Conn) WritePacket(p protocol.Packet) error {
	if err := c.w.queue(p); err != nil {
		return err
	}
	return c.w.flush(context.Background())
}

// WritePacketContext is WritePacket bounded by ctx. Unwritten bytes stay queued.
func (c *Conn) WritePacketContext(ctx context.Context, p protocol.Packet) error {
	if err := c.w.queue(p); err != nil {
		return err
	}
	return c.w.flush(ctx)
}

// Flush writes every queued byte.
func (c *Conn) Flush() error {
	return c.w.flush(context.Background())
}

// ChangeVariant switches the variant of both directions and of the capture sink.
func (c *Conn) ChangeVariant(v variant.Variant) error {
	c.r.variant, c.w.variant = v, v
	return setSinkVariant(c.r.sink, v)
}

// Variant returns the current variant.
func (c *Conn) Variant() variant.Variant { return c.r.variant }

// Secret returns the handshake secret, nil before the handshake.
func (c *Conn) Secret() []byte {
	return secretOf(c.r.frames.Cipher(), c.w.frames.Cipher())
}

// RemoteAddr returns the peer address, nil when the transport has none.
func (c *Conn) RemoteAddr() net.Addr { return remoteAddr(c.s.rw) }

// RemoteIP returns the IPv4 address of the peer or 0.0.0.0.
func (c *Conn) RemoteIP() netip.Addr { return remoteIP(c.s.rw) }

// Close closes the transport.
func (c *Conn) Close() error { return c.s.close() }

func secretOf(ciphers ...crypto.Cipher) []byte {
	for _, c := range ciphers {
		if c != nil {
			return c.Secret()
		}
	}
	return nil
}

func remoteAddr(rw io.ReadWriter) net.Addr {
	if a, ok := rw.(interface{ RemoteAddr() net.Addr }); ok {
		return a.RemoteAddr()
	}
	return nil
}

func remoteIP(rw io.ReadWriter) netip.Addr {
	addr := remoteAddr(rw)
	if addr == nil {
		return netip.IPv4Unspecified()
	}
	ap, err := netip.ParseAddrPort(addr.String())
	if err != nil || !ap.Addr().Unmap().Is4() {
		return netip.IPv4Unspecified()
	}
	return ap.Addr().Unmap()
}
