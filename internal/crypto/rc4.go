package crypto

import (
	"crypto/rc4"
	"errors"
)

var errHalf = errors.New("operation belongs to the other half")

// RC4 is the Vita personality. The keystream covers the whole byte stream,
// frame length prefixes included, so Decrypt accepts chunks of any size.
type RC4 struct {
	enc    *rc4.Cipher
	dec    *rc4.Cipher
	secret []byte
}

func newRC4(key, secret []byte) (*RC4, error) {
	enc, err := rc4.NewCipher(key)
	if err != nil {
		return nil, err
	}
	dec, err := rc4.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &RC4{enc: enc, dec: dec, secret: secret}, nil
}

func (c *RC4) Encrypt(plain []byte) ([]byte, error) {
	if len(plain) == 0 {
		return nil, nil
	}
	if c.enc == nil {
		return nil, fail(ModeRC4, "encrypt", errHalf)
	}
	out := make([]byte, len(plain))
	c.enc.XORKeyStream(out, plain)
	return out, nil
}

func (c *RC4) Decrypt(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if c.dec == nil {
		return nil, fail(ModeRC4, "decrypt", errHalf)
	}
	out := make([]byte, len(data))
	c.dec.XORKeyStream(out, data)
	return out, nil
}

func (c *RC4) Mode() Mode { return ModeRC4 }

func (c *RC4) Secret() []byte { return append([]byte(nil), c.secret...) }

// Split hands each keystream to exactly one half; c must not be used afterwards.
func (c *RC4) Split() (enc, dec Cipher) {
	return &RC4{enc: c.enc, secret: c.secret}, &RC4{dec: c.dec, secret: c.secret}
}
