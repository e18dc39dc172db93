package crypto

import (
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/udisondev/pso2go/internal/constants"
)

// maxDecompressed bounds the memory of a single decompressed frame.
const maxDecompressed = 16 << 20

var (
	zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecompressed))
	})
)

// isZstd checks bytes 1..3 of the zstd magic; the client does not check byte 0.
func isZstd(b []byte) bool {
	return len(b) >= len(constants.ZstdMagic) &&
		b[1] == constants.ZstdMagic[1] &&
		b[2] == constants.ZstdMagic[2] &&
		b[3] == constants.ZstdMagic[3]
}
