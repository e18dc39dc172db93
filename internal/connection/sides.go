package connection

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/udisondev/pso2go/internal/capture"
	"github.com/udisondev/pso2go/internal/crypto"
	"github.com/udisondev/pso2go/internal/metrics"
	"github.com/udisondev/pso2go/internal/protocol"
	"github.com/udisondev/pso2go/internal/variant"
)

// handoff gives a freshly derived cipher to the opposite side and returns
// the cipher the calling side keeps.
type handoff func(c crypto.Cipher) (crypto.Cipher, error)

// offer replaces any value still waiting in ch with v. ch must have a single sender.
func offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func prepare(c crypto.Cipher, compress bool) {
	if ngs, ok := c.(*crypto.AESNGS); ok {
		ngs.SetCompression(compress)
	}
}

func record(sink capture.Sink, dir capture.Direction, frame []byte) error {
	if sink == nil {
		return nil
	}
	if err := sink.WriteFrame(time.Now(), dir, frame); err != nil {
		return fmt.Errorf("capturing frame: %w", err)
	}
	return nil
}

func setSinkVariant(sink capture.Sink, v variant.Variant) error {
	vs, ok := sink.(capture.VariantSetter)
	if !ok {
		return nil
	}
	if err := vs.SetVariant(v); err != nil {
		return fmt.Errorf("updating capture variant: %w", err)
	}
	return nil
}

// readSide is the inbound state machine: framing, decryption, decoding and
// installation of the cipher carried by an inbound handshake.
type readSide struct {
	s       *stream
	frames  FrameReader
	pending []protocol.Packet
	variant variant.Variant
	key     *rsa.PrivateKey
	enabled crypto.Personalities

	compress bool
	sink     capture.Sink
	dir      capture.Direction
	// err is the fatal transport error, reported once buffered frames are consumed.
	err error

	share    handoff
	ciphers  <-chan crypto.Cipher
	variants <-chan variant.Variant
}

// sync applies updates sent by the write half.
func (r *readSide) sync() error {
	select {
	case v := <-r.variants:
		r.variant = v
	default:
	}
	select {
	case c := <-r.ciphers:
		return r.frames.SetCipher(c)
	default:
	}
	return nil
}

func (r *readSide) next(ctx context.Context, poll bool) (protocol.Packet, error) {
	for {
		if len(r.pending) > 0 {
			p := r.pending[0]
			r.pending[0] = nil
			r.pending = r.pending[1:]
			if err := r.handshake(p); err != nil {
				return nil, err
			}
			return p, nil
		}

		if err := r.sync(); err != nil {
			return nil, err
		}
		frame, err := r.frames.Next()
		if err != nil {
			return nil, err
		}
		if frame != nil {
			if err := record(r.sink, r.dir, frame); err != nil {
				return nil, err
			}
			packets, err := protocol.Decode(frame, r.variant)
			if err != nil {
				return nil, fmt.Errorf("decoding frame: %w", err)
			}
			r.pending = packets
			continue
		}

		if r.err != nil {
			return nil, r.err
		}
		if err := r.receive(ctx, poll); err != nil {
			return nil, err
		}
	}
}

// receive feeds one chunk from the read pump into the frame reader.
func (r *readSide) receive(ctx context.Context, poll bool) error {
	var (
		ch chunk
		ok bool
	)
	src := r.s.chunks()
	if poll {
		select {
		case ch, ok = <-src:
		default:
			return ErrWouldBlock
		}
	} else {
		select {
		case ch, ok = <-src:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if !ok {
		r.err = ErrDisconnected
		return r.err
	}
	defer readPool.Put(ch.buf)

	if ch.n > 0 {
		metrics.Default().Bytes.WithLabelValues("read").Add(float64(ch.n))
		if err := r.frames.Feed(ch.buf[:ch.n]); err != nil {
			return err
		}
	}

	err := mapIOError(ch.err)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, ErrWouldBlock):
		r.err = err
	}
	if ch.n > 0 {
		return nil
	}
	return err
}

// handshake installs the cipher of an inbound EncryptionRequest.
func (r *readSide) handshake(p protocol.Packet) error {
	req, ok := p.(*protocol.EncryptionRequest)
	if !ok || r.key == nil {
		return nil
	}
	dec, err := crypto.DecryptHandshake(r.key, req.RSAData)
	if err != nil {
		return fmt.Errorf("decrypting handshake: %w", err)
	}
	c, err := crypto.DeriveCipher(dec, r.variant.IsNGS(), r.enabled)
	if err != nil {
		return fmt.Errorf("deriving cipher: %w", err)
	}
	prepare(c, r.compress)

	own, err := r.share(c)
	if err != nil {
		return err
	}
	if err := r.frames.SetCipher(own); err != nil {
		return err
	}
	req.RSAData = dec
	slog.Debug("handshake accepted", "personality", c.Mode(), "variant", r.variant)
	return nil
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// writeSide is the outbound state machine: encoding, encryption and the
// re-encryption of a relayed handshake.
type writeSide struct {
	s       *stream
	frames  FrameWriter
	variant variant.Variant
	key     *rsa.PublicKey
	enabled crypto.Personalities

	compress bool
	sink     capture.Sink
	dir      capture.Direction

	share    handoff
	ciphers  <-chan crypto.Cipher
	variants <-chan variant.Variant
}

// sync applies updates sent by the read half. Called right before encryption.
func (w *writeSide) sync() {
	select {
	case v := <-w.variants:
		w.variant = v
	default:
	}
	select {
	case c := <-w.ciphers:
		w.frames.SetCipher(c)
	default:
	}
}

func (w *writeSide) queue(p protocol.Packet) error {
	w.sync()
	if req, ok := p.(*protocol.EncryptionRequest); ok && w.key != nil {
		return w.relay(req)
	}

	frame, err := protocol.Encode(p, w.variant)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", protocol.Name(p), err)
	}
	if len(frame) == 0 {
		return nil
	}
	if err := w.frames.Queue(frame); err != nil {
		return err
	}
	return record(w.sink, w.dir, frame)
}

// relay installs the cipher of a decrypted handshake blob and queues the blob
// re-encrypted under the outbound key. The handshake itself goes out in clear.
func (w *writeSide) relay(req *protocol.EncryptionRequest) error {
	c, err := crypto.DeriveCipher(req.RSAData, w.variant.IsNGS(), w.enabled)
	if err != nil {
		return fmt.Errorf("deriving cipher: %w", err)
	}
	blob, err := crypto.EncryptHandshake(w.key, req.RSAData)
	if err != nil {
		return fmt.Errorf("encrypting handshake: %w", err)
	}
	frame, err := protocol.Encode(&protocol.EncryptionRequest{RSAData: blob}, w.variant)
	if err != nil {
		return fmt.Errorf("encoding handshake: %w", err)
	}
	w.frames.QueuePlain(frame)

	prepare(c, w.compress)
	own, err := w.share(c)
	if err != nil {
		return err
	}
	w.frames.SetCipher(own)
	slog.Debug("handshake relayed", "personality", c.Mode(), "variant", w.variant)
	return record(w.sink, w.dir, frame)
}

func (w *writeSide) flush(ctx context.Context) error {
	if d, ok := w.s.rw.(writeDeadliner); ok && ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			_ = d.SetWriteDeadline(time.Unix(1, 0))
		})
		defer func() {
			if !stop() {
				_ = d.SetWriteDeadline(time.Time{})
			}
		}()
	}

	err := w.frames.Flush(w.s)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return mapIOError(err)
}
