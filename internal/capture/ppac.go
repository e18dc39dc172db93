package capture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/udisondev/pso2go/internal/codec"
	"github.com/udisondev/pso2go/internal/metrics"
	"github.com/udisondev/pso2go/internal/protocol"
	"github.com/udisondev/pso2go/internal/variant"
)

// PPAC header: "PPAC" | u8 version | u8 variant (v3+) | u8 compressed (v4+).
// Record: u128 ns since epoch (v2+, u64 seconds in v1) | u8 direction | u64 length | data.
const (
	ppacMagic   = "PPAC"
	ppacVersion = 4

	variantOffset = 5

	recordHeaderSize   = 16 + 1 + 8
	recordHeaderSizeV1 = 8 + 1 + 8

	// maxRecordSize bounds a single record read from a file.
	maxRecordSize = 64 << 20
)

// Writer writes a PPAC v4 capture. It is safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	dst     io.Writer
	w       io.Writer
	zw      *zstd.Encoder
	closer  io.Closer
	variant variant.Variant
}

// NewWriter writes the PPAC header to dst and returns a Writer appending records to it.
func NewWriter(dst io.Writer, v variant.Variant, compress bool) (*Writer, error) {
	code, err := variantCode(v)
	if err != nil {
		return nil, err
	}
	header := append([]byte(ppacMagic), ppacVersion, code, 0)
	if compress {
		header[len(header)-1] = 1
	}
	if _, err := dst.Write(header); err != nil {
		return nil, fmt.Errorf("writing PPAC header: %w", err)
	}

	w := &Writer{dst: dst, w: dst, variant: v}
	if compress {
		zw, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
		w.zw, w.w = zw, zw
	}
	return w, nil
}

// Create creates the file at path and writes a PPAC header to it.
func Create(path string, v variant.Variant, compress bool) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating capture file: %w", err)
	}
	w, err := NewWriter(f, v, compress)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// Variant returns the variant stored in the header.
func (w *Writer) Variant() variant.Variant {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.variant
}

// WriteFrame stores every frame of data as a separate record.
func (w *Writer) WriteFrame(t time.Time, dir Direction, data []byte) error {
	frames, err := SplitFrames(data)

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, frame := range frames {
		if werr := w.writeRecord(t, dir, frame); werr != nil {
			return werr
		}
	}
	return err
}

// WriteRecord stores rec without looking at its contents.
func (w *Writer) WriteRecord(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeRecord(rec.Time, rec.Direction, rec.Data)
}

// WritePacket encodes p with the current variant and stores it.
func (w *Writer) WritePacket(t time.Time, dir Direction, p protocol.Packet) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	frame, err := protocol.Encode(p, w.variant)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", protocol.Name(p), err)
	}
	return w.writeRecord(t, dir, frame)
}

func (w *Writer) writeRecord(t time.Time, dir Direction, data []byte) error {
	hdr := codec.Get()
	defer hdr.Put()
	hdr.U128(codec.Uint128From(uint64(t.UnixNano())))
	hdr.U8(uint8(dir))
	hdr.U64(uint64(len(data)))

	if _, err := w.w.Write(hdr.Bytes()); err != nil {
		return fmt.Errorf("writing record header: %w", err)
	}
	if _, err := w.w.Write(data); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	metrics.Default().CapturedFrames.Inc()
	return nil
}

// SetVariant changes the stored variant. The header byte is rewritten in place
// when the destination is seekable.
func (w *Writer) SetVariant(v variant.Variant) error {
	code, err := variantCode(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.variant = v

	ws, ok := w.dst.(io.WriteSeeker)
	if !ok {
		return nil
	}
	// encoder пишет в dst асинхронно: дожидаемся записи перед seek
	if w.zw != nil {
		if err := w.zw.Flush(); err != nil {
			return fmt.Errorf("flushing capture: %w", err)
		}
	}
	cur, err := ws.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("seeking capture: %w", err)
	}
	if _, err := ws.Seek(variantOffset, io.SeekStart); err != nil {
		return fmt.Errorf("seeking capture: %w", err)
	}
	if _, err := ws.Write([]byte{code}); err != nil {
		return fmt.Errorf("rewriting capture variant: %w", err)
	}
	if _, err := ws.Seek(cur, io.SeekStart); err != nil {
		return fmt.Errorf("seeking capture: %w", err)
	}
	return nil
}

// Flush pushes buffered compressed data to the destination.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.zw == nil {
		return nil
	}
	return w.zw.Flush()
}

// Close finishes the zstd stream and closes a file opened by Create.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	if w.zw != nil {
		errs = append(errs, w.zw.Close())
		w.zw = nil
	}
	if w.closer != nil {
		errs = append(errs, w.closer.Close())
		w.closer = nil
	}
	return errors.Join(errs...)
}

// Reader reads PPAC captures of versions 1 to 4.
type Reader struct {
	r       io.Reader
	zr      *zstd.Decoder
	closer  io.Closer
	version uint8
	variant variant.Variant
}

// NewReader reads the PPAC header from src.
func NewReader(src io.Reader) (*Reader, error) {
	br := bufio.NewReader(src)

	magic := make([]byte, len(ppacMagic)+1)
	if _, err := io.ReadFull(br, magic); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrInvalidFile
		}
		return nil, fmt.Errorf("reading PPAC header: %w", err)
	}
	if string(magic[:len(ppacMagic)]) != ppacMagic {
		return nil, ErrInvalidFile
	}

	r := &Reader{r: br, version: magic[len(ppacMagic)], variant: variant.NGS}
	if r.version > ppacVersion {
		return nil, &UnsupportedVersionError{Version: r.version}
	}
	if r.version >= 3 {
		code, err := br.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("reading PPAC variant: %w", err)
		}
		if r.variant, err = variantFromCode(code); err != nil {
			return nil, err
		}
	}
	if r.version >= 4 {
		compressed, err := br.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("reading PPAC compression flag: %w", err)
		}
		if compressed != 0 {
			zr, err := zstd.NewReader(br)
			if err != nil {
				return nil, fmt.Errorf("creating zstd decoder: %w", err)
			}
			r.zr, r.r = zr, zr
		}
	}
	return r, nil
}

// Open opens the capture file at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening capture file: %w", err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// Version returns the format version of the input.
func (r *Reader) Version() uint8 { return r.version }

// Variant returns the client variant of the capture.
func (r *Reader) Variant() variant.Variant { return r.variant }

// NextFrame returns the next record or io.EOF after the last one.
func (r *Reader) NextFrame() (Record, error) {
	size := recordHeaderSize
	if r.version < 2 {
		size = recordHeaderSizeV1
	}
	hdr := make([]byte, size)
	if _, err := io.ReadFull(r.r, hdr); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("reading record header: %w", err)
	}

	cr := codec.NewReader(hdr)
	var (
		rec Record
		err error
	)
	if r.version < 2 {
		secs, _ := cr.U64()
		rec.Time = time.Unix(int64(secs), 0)
	} else {
		ns, _ := cr.U128()
		rec.Time = time.Unix(0, int64(ns.Lo))
	}
	dir, _ := cr.U8()
	if dir != 0 {
		rec.Direction = ToClient
	}
	n, _ := cr.U64()
	if n > maxRecordSize {
		return Record{}, fmt.Errorf("record of %d bytes: %w", n, ErrCorruptedFrame)
	}

	rec.Data = make([]byte, n)
	if _, err = io.ReadFull(r.r, rec.Data); err != nil {
		return Record{}, fmt.Errorf("reading record: %w", io.ErrUnexpectedEOF)
	}
	return rec, nil
}

// Entry is a record together with its decoded packets.
type Entry struct {
	Record
	Variant variant.Variant
	Packets []protocol.Packet
	// Err is the decode error of the record. Packets decoded before it are kept.
	Err error
}

// NextEntry reads the next record and decodes it with the capture variant.
func (r *Reader) NextEntry() (Entry, error) {
	rec, err := r.NextFrame()
	if err != nil {
		return Entry{}, err
	}
	e := Entry{Record: rec, Variant: r.variant}
	e.Packets, e.Err = protocol.Decode(rec.Data, r.variant)
	return e, nil
}

// Close releases the decoder and a file opened by Open.
func (r *Reader) Close() error {
	if r.zr != nil {
		r.zr.Close()
		r.zr = nil
	}
	if r.closer != nil {
		err := r.closer.Close()
		r.closer = nil
		return err
	}
	return nil
}
