package connection

import (
	"encoding/binary"
	"fmt"
	"io"
	"slices"

	"github.com/udisondev/pso2go/internal/constants"
	"github.com/udisondev/pso2go/internal/crypto"
	"github.com/udisondev/pso2go/internal/protocol"
)

// maxFrameSize bounds the length a peer may declare for a single frame.
const maxFrameSize = 16 << 20

func isAES(c crypto.Cipher) bool {
	if c == nil {
		return false
	}
	m := c.Mode()
	return m == crypto.ModeAESLegacy || m == crypto.ModeAESNGS
}

func isRC4(c crypto.Cipher) bool {
	return c != nil && c.Mode() == crypto.ModeRC4
}

// FrameReader accumulates inbound bytes and cuts them into plain frames.
//
// Without a cipher and with RC4 a frame starts with its u32 LE length. RC4 is a
// stream cipher, so bytes are decrypted as they arrive. AES frames carry their
// length at offset 0x44 and are decrypted whole once complete.
type FrameReader struct {
	buf    []byte
	length int
	cipher crypto.Cipher
}

// NewFrameReader returns an empty FrameReader.
func NewFrameReader() *FrameReader {
	return &FrameReader{buf: make([]byte, 0, constants.DefaultReadBufSize)}
}

// Cipher returns the installed cipher, nil before the handshake.
func (r *FrameReader) Cipher() crypto.Cipher { return r.cipher }

// SetCipher installs c for all bytes not yet cut into frames.
// Switching to RC4 decrypts the bytes already buffered.
func (r *FrameReader) SetCipher(c crypto.Cipher) error {
	r.cipher = c
	r.length = 0
	if !isRC4(c) || len(r.buf) == 0 {
		return nil
	}
	plain, err := c.Decrypt(r.buf)
	if err != nil {
		return err
	}
	r.buf = append(r.buf[:0], plain...)
	return nil
}

// Feed appends bytes read from the transport.
func (r *FrameReader) Feed(p []byte) error {
	if isRC4(r.cipher) {
		plain, err := r.cipher.Decrypt(p)
		if err != nil {
			return err
		}
		p = plain
	}
	r.buf = append(r.buf, p...)
	return nil
}

// Buffered returns the number of bytes waiting for a complete frame.
func (r *FrameReader) Buffered() int { return len(r.buf) }

// Next returns the next complete plain frame, or nil when more bytes are needed.
// The returned slice is owned by the caller.
func (r *FrameReader) Next() ([]byte, error) {
	if r.length == 0 {
		n, err := r.peekLength()
		if err != nil || n == 0 {
			return nil, err
		}
		r.length = n
	}
	if len(r.buf) < r.length {
		return nil, nil
	}

	frame := slices.Clone(r.buf[:r.length])
	r.buf = r.buf[:copy(r.buf, r.buf[r.length:])]
	r.length = 0

	if isAES(r.cipher) {
		return r.cipher.Decrypt(frame)
	}
	return frame, nil
}

func (r *FrameReader) peekLength() (int, error) {
	offset, minLen := 0, constants.FrameLengthSize
	switch {
	case isAES(r.cipher):
		offset, minLen = constants.AESLengthOffset, constants.AESHeaderSize+constants.AESBlockSize
		if len(r.buf) < constants.AESHeaderSize {
			return 0, nil
		}
	case len(r.buf) < constants.FrameLengthSize:
		return 0, nil
	}

	n := int(binary.LittleEndian.Uint32(r.buf[offset:]))
	if n < minLen || n > maxFrameSize {
		return 0, fmt.Errorf("frame declares %d bytes: %w", n, protocol.ErrFrameLength)
	}
	return n, nil
}

// FrameWriter accumulates encrypted outbound frames until they are flushed.
type FrameWriter struct {
	buf    []byte
	cipher crypto.Cipher
}

// NewFrameWriter returns an empty FrameWriter.
func NewFrameWriter() *FrameWriter {
	return &FrameWriter{buf: make([]byte, 0, constants.DefaultReadBufSize)}
}

// Cipher returns the installed cipher, nil before the handshake.
func (w *FrameWriter) Cipher() crypto.Cipher { return w.cipher }

// SetCipher installs c for frames queued from now on.
func (w *FrameWriter) SetCipher(c crypto.Cipher) { w.cipher = c }

// Queue encrypts frame with the installed cipher and appends it.
func (w *FrameWriter) Queue(frame []byte) error {
	if w.cipher != nil {
		enc, err := w.cipher.Encrypt(frame)
		if err != nil {
			return err
		}
		frame = enc
	}
	w.buf = append(w.buf, frame...)
	return nil
}

// QueuePlain appends frame without encryption.
func (w *FrameWriter) QueuePlain(frame []byte) {
	w.buf = append(w.buf, frame...)
}

// Buffered returns the number of bytes not yet written.
func (w *FrameWriter) Buffered() int { return len(w.buf) }

// Flush writes the buffered bytes to dst. Bytes not accepted by dst stay buffered.
func (w *FrameWriter) Flush(dst io.Writer) error {
	for len(w.buf) > 0 {
		n, err := dst.Write(w.buf)
		w.buf = w.buf[:copy(w.buf, w.buf[n:])]
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
	}
	return nil
}
