package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/udisondev/pso2go/internal/constants"
	"github.com/udisondev/pso2go/internal/metrics"
	"github.com/udisondev/pso2go/internal/variant"
)

// GenerateKey generates an RSA key pair with exponent 65537 (F4).
func GenerateKey(bits int) (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generating RSA key: %w", err)
	}
	return key, nil
}

// leftPad restores leading zero bytes of a big-endian number to size bytes.
func leftPad(b []byte, size int) []byte {
	if len(b) >= size {
		return b
	}
	padded := make([]byte, size)
	copy(padded[size-len(b):], b)
	return padded
}

// DecryptHandshake decrypts the RSA blob of an EncryptionRequest.
// The blob arrives with its leading zeros stripped and is padded back to the modulus size.
func DecryptHandshake(key *rsa.PrivateKey, blob []byte) ([]byte, error) {
	if key == nil {
		return nil, fail(ModeNone, "handshake", errors.New("no private key"))
	}
	if len(blob) == 0 || len(blob) > key.Size() {
		return nil, fail(ModeNone, "handshake", fmt.Errorf("blob of %d bytes for a %d byte modulus", len(blob), key.Size()))
	}
	dec, err := rsa.DecryptPKCS1v15(nil, key, leftPad(blob, key.Size()))
	if err != nil {
		return nil, fail(ModeNone, "handshake", err)
	}
	return dec, nil
}

// EncryptHandshake wraps a decrypted handshake blob for the holder of key.
func EncryptHandshake(key *rsa.PublicKey, dec []byte) ([]byte, error) {
	if key == nil {
		return nil, fail(ModeNone, "handshake", errors.New("no public key"))
	}
	blob, err := rsa.EncryptPKCS1v15(rand.Reader, key, dec)
	if err != nil {
		return nil, fail(ModeNone, "handshake", err)
	}
	return blob, nil
}

// Reencrypt decrypts blob with in and encrypts the result for out.
func Reencrypt(in *rsa.PrivateKey, out *rsa.PublicKey, blob []byte) ([]byte, error) {
	dec, err := DecryptHandshake(in, blob)
	if err != nil {
		return nil, err
	}
	return EncryptHandshake(out, dec)
}

// DeriveCipher builds the cipher selected by a decrypted handshake blob.
//
// Blobs longer than 0x30 bytes carry an AES key and an encrypted secret whose
// first 16 bytes are the initial IV. Shorter blobs carry an RC4 key.
func DeriveCipher(dec []byte, ngs bool, enabled Personalities) (Cipher, error) {
	var (
		c   Cipher
		err error
	)
	switch {
	case len(dec) > constants.HandshakeAESThreshold:
		c, err = deriveAES(dec, ngs, enabled)
	default:
		c, err = deriveRC4(dec, enabled)
	}
	if err != nil {
		return nil, err
	}
	metrics.Default().Handshakes.WithLabelValues(c.Mode().String()).Inc()
	return c, nil
}

func deriveAES(dec []byte, ngs bool, enabled Personalities) (Cipher, error) {
	mode, v := ModeAESLegacy, variant.Classic
	if ngs {
		mode, v = ModeAESNGS, variant.NGS
	}
	if !enabled.Has(mode) {
		return nil, &UnsupportedVariantError{Variant: v, What: mode.String() + " encryption"}
	}
	if len(dec) < constants.HandshakeAESKeyEnd {
		return nil, fail(mode, "handshake", fmt.Errorf("AES handshake of %d bytes", len(dec)))
	}
	key := dec[constants.HandshakeAESKeyOffset:constants.HandshakeAESKeyEnd]
	unwrap, err := newAESLegacy(key, nil, nil)
	if err != nil {
		return nil, fail(mode, "handshake", err)
	}
	secret, err := cbcDecryptRaw(unwrap.block, constants.HandshakeIV[:], dec[:constants.HandshakeAESThreshold])
	if err != nil {
		return nil, fail(mode, "handshake", err)
	}
	if _, err := unpad(secret); err != nil {
		return nil, fail(mode, "handshake", err)
	}
	iv := secret[:constants.AESBlockSize]
	if ngs {
		c, err := newAESNGS(key, iv, secret)
		if err != nil {
			return nil, fail(mode, "handshake", err)
		}
		return c, nil
	}
	c, err := newAESLegacy(key, iv, secret)
	if err != nil {
		return nil, fail(mode, "handshake", err)
	}
	return c, nil
}

func deriveRC4(dec []byte, enabled Personalities) (Cipher, error) {
	if !enabled.Has(ModeRC4) {
		return nil, &UnsupportedVariantError{Variant: variant.Vita, What: ModeRC4.String() + " encryption"}
	}
	if len(dec) < constants.HandshakeRC4KeyEnd {
		return nil, fail(ModeRC4, "handshake", fmt.Errorf("RC4 handshake of %d bytes", len(dec)))
	}
	key := dec[constants.HandshakeRC4KeyOffset:constants.HandshakeRC4KeyEnd]
	tmp, err := newRC4(key, nil)
	if err != nil {
		return nil, fail(ModeRC4, "handshake", err)
	}
	secret, _ := tmp.Decrypt(dec[:constants.HandshakeRC4SecretSize])
	c, err := newRC4(key, secret)
	if err != nil {
		return nil, fail(ModeRC4, "handshake", err)
	}
	return c, nil
}

// NewAESHandshake builds the decrypted handshake blob a client sends for an AES
// personality: the secret encrypted under key, followed by key.
// The secret must be 0x20..0x2F bytes; its first 16 bytes become the session IV.
func NewAESHandshake(key, secret []byte) ([]byte, error) {
	if len(key) != constants.AESKeySize {
		return nil, fmt.Errorf("AES key of %d bytes", len(key))
	}
	if len(secret) < constants.HandshakeAESThreshold-constants.AESBlockSize ||
		len(secret) >= constants.HandshakeAESThreshold {
		return nil, fmt.Errorf("AES handshake secret of %d bytes", len(secret))
	}
	c, err := newAESLegacy(key, nil, nil)
	if err != nil {
		return nil, err
	}
	blob := cbcEncrypt(c.block, constants.HandshakeIV[:], secret)
	return append(blob, key...), nil
}

// NewRC4Handshake builds the decrypted handshake blob a client sends for RC4.
func NewRC4Handshake(key, secret []byte) ([]byte, error) {
	if len(key) != constants.HandshakeRC4KeyEnd-constants.HandshakeRC4KeyOffset ||
		len(secret) != constants.HandshakeRC4SecretSize {
		return nil, fmt.Errorf("RC4 handshake with a %d byte key and a %d byte secret", len(key), len(secret))
	}
	c, err := newRC4(key, nil)
	if err != nil {
		return nil, err
	}
	wrapped, _ := c.Encrypt(secret)
	return append(wrapped, key...), nil
}
