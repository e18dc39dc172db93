package testutil

import (
	"crypto/rsa"
	"sync"
	"testing"

	"github.com/udisondev/pso2go/internal/constants"
	"github.com/udisondev/pso2go/internal/crypto"
)

var (
	keysOnce  sync.Once
	clientKey *rsa.PrivateKey
	serverKey *rsa.PrivateKey
	keysErr   error
)

// RSAKeys возвращает две пары RSA-1024 ключей, общие для всего тестового бинарника.
// client: ключ, которым клиент шифрует рукопожатие (его приватная часть у прокси),
// server: ключ апстрим-сервера.
func RSAKeys(tb testing.TB) (client, server *rsa.PrivateKey) {
	tb.Helper()
	keysOnce.Do(func() {
		if clientKey, keysErr = crypto.GenerateKey(constants.TestRSAKeyBits); keysErr != nil {
			return
		}
		serverKey, keysErr = crypto.GenerateKey(constants.TestRSAKeyBits)
	})
	if keysErr != nil {
		tb.Fatalf("generating RSA keys: %v", keysErr)
	}
	return clientKey, serverKey
}

// Seq возвращает n байт start, start+1, ...
func Seq(n int, start byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = start + byte(i)
	}
	return b
}

// AESHandshake возвращает расшифрованное рукопожатие AES и его ключ.
func AESHandshake(tb testing.TB) (blob []byte, key []byte) {
	tb.Helper()
	key = Seq(32, 0x40)
	blob, err := crypto.NewAESHandshake(key, Seq(0x20, 0x01))
	if err != nil {
		tb.Fatalf("building AES handshake: %v", err)
	}
	return blob, key
}

// RC4Handshake возвращает расшифрованное рукопожатие RC4 и его ключ.
func RC4Handshake(tb testing.TB) (blob []byte, key []byte) {
	tb.Helper()
	key = Seq(16, 0xA0)
	blob, err := crypto.NewRC4Handshake(key, Seq(16, 0x10))
	if err != nil {
		tb.Fatalf("building RC4 handshake: %v", err)
	}
	return blob, key
}

// EncryptHandshake шифрует blob так, как это делает клиент.
func EncryptHandshake(tb testing.TB, pub *rsa.PublicKey, blob []byte) []byte {
	tb.Helper()
	out, err := crypto.EncryptHandshake(pub, blob)
	if err != nil {
		tb.Fatalf("encrypting handshake: %v", err)
	}
	return out
}
