package crypto

import (
	"bytes"
	"crypto/cipher"
	"errors"

	"github.com/udisondev/pso2go/internal/constants"
)

var errPadding = errors.New("invalid PKCS#7 padding")

// cbcEncrypt pads plain with PKCS#7 and encrypts it.
func cbcEncrypt(block cipher.Block, iv, plain []byte) []byte {
	n := constants.AESBlockSize - len(plain)%constants.AESBlockSize
	buf := make([]byte, len(plain)+n)
	copy(buf, plain)
	copy(buf[len(plain):], bytes.Repeat([]byte{byte(n)}, n))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(buf, buf)
	return buf
}

// cbcDecrypt decrypts ct and strips PKCS#7 padding.
func cbcDecrypt(block cipher.Block, iv, ct []byte) ([]byte, error) {
	buf, err := cbcDecryptRaw(block, iv, ct)
	if err != nil {
		return nil, err
	}
	return unpad(buf)
}

// cbcDecryptRaw decrypts ct and leaves padding in place.
func cbcDecryptRaw(block cipher.Block, iv, ct []byte) ([]byte, error) {
	if len(ct) == 0 || len(ct)%constants.AESBlockSize != 0 {
		return nil, errors.New("ciphertext is not a whole number of blocks")
	}
	buf := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(buf, ct)
	return buf, nil
}

func unpad(buf []byte) ([]byte, error) {
	if len(buf) == 0 {
		return nil, errPadding
	}
	n := int(buf[len(buf)-1])
	if n == 0 || n > constants.AESBlockSize || n > len(buf) {
		return nil, errPadding
	}
	for _, b := range buf[len(buf)-n:] {
		if int(b) != n {
			return nil, errPadding
		}
	}
	return buf[:len(buf)-n], nil
}
