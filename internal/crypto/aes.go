package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"

	"github.com/udisondev/pso2go/internal/constants"
)

// AES frame layout:
//
//	0x00 digest over the frame header (0x00..hdr with this digest zeroed)
//	0x20 digest over 0x44..end
//	0x40 marker 01 00 FF FF
//	0x44 u32 LE frame length
//	0x48 legacy only: IV
//	hdr  ciphertext

type digestFunc func() hash.Hash

func legacyDigest() hash.Hash { return hmac.New(sha256.New, []byte(constants.LegacyHMACKey)) }

func sum(newHash digestFunc, b []byte) []byte {
	h := newHash()
	h.Write(b)
	return h.Sum(nil)
}

// seal writes the prefix of an AES frame whose ciphertext is already in place.
func seal(out []byte, hdr int, newHash digestFunc) {
	binary.BigEndian.PutUint32(out[constants.AESMarkerOffset:], constants.AESMarker)
	binary.LittleEndian.PutUint32(out[constants.AESLengthOffset:], uint32(len(out)))
	copy(out[constants.DigestSize:2*constants.DigestSize], sum(newHash, out[constants.AESLengthOffset:]))
	copy(out[:constants.DigestSize], sum(newHash, out[:hdr]))
}

// open checks the prefix of an AES frame and returns its ciphertext.
func open(data []byte, hdr int, newHash digestFunc) ([]byte, error) {
	if len(data) < hdr+constants.AESBlockSize || (len(data)-hdr)%constants.AESBlockSize != 0 {
		return nil, fmt.Errorf("frame of %d bytes", len(data))
	}
	if binary.BigEndian.Uint32(data[constants.AESMarkerOffset:]) != constants.AESMarker {
		return nil, errors.New("marker mismatch")
	}
	if n := binary.LittleEndian.Uint32(data[constants.AESLengthOffset:]); int(n) != len(data) {
		return nil, fmt.Errorf("declared length %d, frame of %d bytes", n, len(data))
	}
	if !hmac.Equal(sum(newHash, data[constants.AESLengthOffset:]), data[constants.DigestSize:2*constants.DigestSize]) {
		return nil, errors.New("body digest mismatch")
	}
	prefix := make([]byte, hdr)
	copy(prefix[constants.DigestSize:], data[constants.DigestSize:hdr])
	if !hmac.Equal(sum(newHash, prefix), data[:constants.DigestSize]) {
		return nil, errors.New("header digest mismatch")
	}
	return data[hdr:], nil
}

// AESLegacy is the AES personality of pre-NGS clients.
// The inbound IV travels inside every frame, the outbound IV rolls.
type AESLegacy struct {
	block  cipher.Block
	ivOut  [constants.AESBlockSize]byte
	secret []byte
}

func newAESLegacy(key, iv, secret []byte) (*AESLegacy, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	c := &AESLegacy{block: block, secret: bytes.Clone(secret)}
	copy(c.ivOut[:], iv)
	return c, nil
}

func (c *AESLegacy) Encrypt(plain []byte) ([]byte, error) {
	if len(plain) == 0 {
		return nil, nil
	}
	ct := cbcEncrypt(c.block, c.ivOut[:], plain)
	out := make([]byte, constants.AESLegacyHeaderSize+len(ct))
	copy(out[constants.AESHeaderSize:], c.ivOut[:])
	copy(out[constants.AESLegacyHeaderSize:], ct)
	seal(out, constants.AESLegacyHeaderSize, legacyDigest)
	copy(c.ivOut[:], ct[len(ct)-constants.AESBlockSize:])
	return out, nil
}

func (c *AESLegacy) Decrypt(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	ct, err := open(data, constants.AESLegacyHeaderSize, legacyDigest)
	if err != nil {
		return nil, fail(ModeAESLegacy, "decrypt", err)
	}
	plain, err := cbcDecrypt(c.block, data[constants.AESHeaderSize:constants.AESLegacyHeaderSize], ct)
	if err != nil {
		return nil, fail(ModeAESLegacy, "decrypt", err)
	}
	return plain, nil
}

func (c *AESLegacy) Mode() Mode { return ModeAESLegacy }

func (c *AESLegacy) Secret() []byte { return bytes.Clone(c.secret) }

func (c *AESLegacy) Split() (enc, dec Cipher) {
	a, b := *c, *c
	return &a, &b
}

// AESNGS is the AES personality of NGS clients: two rolling IVs and
// optional zstd compression of the plaintext.
type AESNGS struct {
	block    cipher.Block
	ivIn     [constants.AESBlockSize]byte
	ivOut    [constants.AESBlockSize]byte
	secret   []byte
	compress bool
}

func newAESNGS(key, iv, secret []byte) (*AESNGS, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	c := &AESNGS{block: block, secret: bytes.Clone(secret)}
	copy(c.ivIn[:], iv)
	copy(c.ivOut[:], iv)
	return c, nil
}

// SetCompression enables zstd compression of outbound plaintext.
func (c *AESNGS) SetCompression(on bool) { c.compress = on }

func (c *AESNGS) Encrypt(plain []byte) ([]byte, error) {
	if len(plain) == 0 {
		return nil, nil
	}
	if c.compress {
		enc, err := zstdEncoder()
		if err != nil {
			return nil, fail(ModeAESNGS, "compress", err)
		}
		plain = enc.EncodeAll(plain, nil)
	}
	ct := cbcEncrypt(c.block, c.ivOut[:], plain)
	out := make([]byte, constants.AESHeaderSize+len(ct))
	copy(out[constants.AESHeaderSize:], ct)
	seal(out, constants.AESHeaderSize, sha256.New)
	copy(c.ivOut[:], out[len(out)-constants.AESBlockSize:])
	return out, nil
}

func (c *AESNGS) Decrypt(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	ct, err := open(data, constants.AESHeaderSize, sha256.New)
	if err != nil {
		return nil, fail(ModeAESNGS, "decrypt", err)
	}
	plain, err := cbcDecrypt(c.block, c.ivIn[:], ct)
	if err != nil {
		return nil, fail(ModeAESNGS, "decrypt", err)
	}
	if isZstd(plain) {
		dec, err := zstdDecoder()
		if err != nil {
			return nil, fail(ModeAESNGS, "decompress", err)
		}
		if plain, err = dec.DecodeAll(plain, nil); err != nil {
			return nil, fail(ModeAESNGS, "decompress", err)
		}
	}
	copy(c.ivIn[:], data[len(data)-constants.AESBlockSize:])
	return plain, nil
}

func (c *AESNGS) Mode() Mode { return ModeAESNGS }

func (c *AESNGS) Secret() []byte { return bytes.Clone(c.secret) }

func (c *AESNGS) Split() (enc, dec Cipher) {
	a, b := *c, *c
	return &a, &b
}
