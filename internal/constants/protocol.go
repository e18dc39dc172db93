package constants

// PSO2 Protocol Constants
//
// Wire-level constants shared by the codec, the cipher engine and the framing layer.
// Offsets are relative to the start of a frame as it appears on the wire.

// Frame Structure Constants
const (
	// FrameLengthSize is the outer frame length prefix (u32 LE, counts itself)
	FrameLengthSize = 4

	// HeaderSize is the packet header size for both legacy and NGS layouts
	HeaderSize = 4

	// FrameAlign is the alignment of a whole encoded frame and of every variable-length field
	FrameAlign = 4

	// DefaultReadBufSize is the initial capacity of a connection read accumulator
	DefaultReadBufSize = 4096

	// DefaultWriteBufSize is the initial capacity of a pooled packet writer
	DefaultWriteBufSize = 512
)

// Handshake Packet Constants
const (
	// EncryptionRequestCategory / EncryptionRequestSubID identify the RSA handshake packet
	EncryptionRequestCategory = 0x11
	EncryptionRequestSubID    = 0x0B

	// EncryptionResponseSubID carries the derived secret back to the client
	EncryptionResponseSubID = 0x0C

	// RSABlobSize is the size the reversed RSA blob is padded to on write
	RSABlobSize = 0x104

	// RSABlobTrailer is the number of reversed trailing bytes dropped on read
	RSABlobTrailer = 4
)

// RSA Handshake Constants
const (
	// HandshakeAESThreshold separates AES handshakes (> 0x30 bytes) from RC4 ones (<= 0x30)
	HandshakeAESThreshold = 0x30

	// HandshakeAESKeyOffset is where the 32-byte AES key of the handshake blob begins
	HandshakeAESKeyOffset = 0x30

	// HandshakeAESKeyEnd is the end of the AES key inside the handshake blob
	HandshakeAESKeyEnd = 0x50

	// HandshakeRC4KeyOffset / HandshakeRC4KeyEnd bound the RC4 key inside the blob
	HandshakeRC4KeyOffset = 0x10
	HandshakeRC4KeyEnd    = 0x20

	// HandshakeRC4SecretSize is the number of leading bytes run through RC4 to produce the secret
	HandshakeRC4SecretSize = 0x10
)

// AES Frame Constants
const (
	// AESBlockSize is the AES block and IV size
	AESBlockSize = 16

	// AESKeySize is the AES-256 key size
	AESKeySize = 32

	// DigestSize is the SHA-256 / HMAC-SHA256 digest size
	DigestSize = 0x20

	// AESMarkerOffset is the position of the constant marker in an AES frame
	AESMarkerOffset = 0x40

	// AESLengthOffset is the position of the declared frame length in an AES frame
	AESLengthOffset = 0x44

	// AESHeaderSize is the size of the clear AES frame prefix (digests, marker, length)
	AESHeaderSize = 0x48

	// AESLegacyHeaderSize is AESHeaderSize plus the in-frame IV of the legacy personality
	AESLegacyHeaderSize = AESHeaderSize + AESBlockSize

	// AESMarker is the constant written big-endian at AESMarkerOffset (bytes 01 00 FF FF)
	AESMarker uint32 = 0x0100FFFF

	// LegacyHMACKey is the shared HMAC secret of the legacy AES personality
	LegacyHMACKey = "passwordxxxxxxxx"
)

// Time Constants
const (
	// WinTimeUnixOffset is the Unix epoch expressed in the game's millisecond clock
	WinTimeUnixOffset uint64 = 0x0295_E964_8864
)

// ZstdMagic is the zstd frame magic number (little-endian 0xFD2FB528).
var ZstdMagic = [4]byte{0x28, 0xB5, 0x2F, 0xFD}

// HandshakeIV is the fixed IV used to unwrap the AES handshake blob.
var HandshakeIV = [AESBlockSize]byte{
	0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
	0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F,
}
