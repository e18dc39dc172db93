// Package capture records raw frames of a connection and reads them back.
//
// The on-disk format is PPAC: a small header followed by timestamped,
// directional records, optionally inside a zstd stream.
package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/udisondev/pso2go/internal/constants"
	"github.com/udisondev/pso2go/internal/variant"
)

var (
	// ErrInvalidFile is returned when the input does not start with the PPAC magic.
	ErrInvalidFile = errors.New("not a PPAC file")

	// ErrCorruptedFrame is returned when a frame declares more bytes than were supplied.
	ErrCorruptedFrame = errors.New("corrupted frame")
)

// UnsupportedVersionError is returned for PPAC files newer than this reader.
type UnsupportedVersionError struct {
	Version uint8
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported PPAC version %d", e.Version)
}

// InvalidVariantError is returned for a variant code that PPAC cannot store.
type InvalidVariantError struct {
	Code uint8
}

func (e *InvalidVariantError) Error() string {
	return fmt.Sprintf("invalid PPAC variant code %d", e.Code)
}

// Direction is the direction a frame travelled in.
type Direction uint8

const (
	ToServer Direction = iota
	ToClient
)

// Flip returns the opposite direction.
func (d Direction) Flip() Direction {
	if d == ToServer {
		return ToClient
	}
	return ToServer
}

func (d Direction) String() string {
	if d == ToServer {
		return "to_server"
	}
	return "to_client"
}

// Record is one captured frame.
type Record struct {
	Time      time.Time
	Direction Direction
	Data      []byte
}

// Sink accepts captured frames. data may hold several frames.
type Sink interface {
	WriteFrame(t time.Time, dir Direction, data []byte) error
}

// Source yields captured frames in order and io.EOF after the last one.
type Source interface {
	NextFrame() (Record, error)
}

// VariantSetter is implemented by sinks that store the client variant.
type VariantSetter interface {
	SetVariant(v variant.Variant) error
}

// Copy moves every record of src into dst and returns the number of records copied.
func Copy(dst Sink, src Source) (int, error) {
	n := 0
	for {
		rec, err := src.NextFrame()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if err := dst.WriteFrame(rec.Time, rec.Direction, rec.Data); err != nil {
			return n, fmt.Errorf("copying record %d: %w", n, err)
		}
		n++
	}
}

// SplitFrames cuts data into length-prefixed frames.
// Four or fewer trailing bytes are ignored.
func SplitFrames(data []byte) ([][]byte, error) {
	var frames [][]byte
	for p := 0; len(data)-p > constants.FrameLengthSize; {
		n := int(binary.LittleEndian.Uint32(data[p:]))
		if n < constants.FrameLengthSize || len(data)-p < n {
			return frames, fmt.Errorf("frame at offset %d declares %d bytes: %w", p, n, ErrCorruptedFrame)
		}
		frames = append(frames, data[p:p+n])
		p += n
	}
	return frames, nil
}

func variantCode(v variant.Variant) (uint8, error) {
	switch v {
	case variant.Classic:
		return 0, nil
	case variant.NGS:
		return 1, nil
	case variant.NA:
		return 2, nil
	case variant.JP:
		return 3, nil
	case variant.Vita:
		return 4, nil
	default:
		return 0, &InvalidVariantError{Code: 5}
	}
}

func variantFromCode(code uint8) (variant.Variant, error) {
	switch code {
	case 0:
		return variant.Classic, nil
	case 1:
		return variant.NGS, nil
	case 2:
		return variant.NA, nil
	case 3:
		return variant.JP, nil
	case 4:
		return variant.Vita, nil
	default:
		return 0, &InvalidVariantError{Code: code}
	}
}
