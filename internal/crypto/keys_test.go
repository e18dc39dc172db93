package crypto

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func writeFile(t *testing.T, name string, data []byte) PEMKeyFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return PEMKeyFile(path)
}

func le(b []byte) []byte {
	out := slices.Clone(b)
	slices.Reverse(out)
	return out
}

func TestPEMKeyFile_PKCS8(t *testing.T) {
	key, _ := testKeys(t)
	data, err := MarshalPrivateKey(key)
	require.NoError(t, err)
	f := writeFile(t, "server.pem", data)

	got, err := f.PrivateKey()
	require.NoError(t, err)
	assert.True(t, key.Equal(got))

	pub, err := f.PublicKey()
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(pub))
}

func TestParsePrivateKey_Formats(t *testing.T) {
	key, _ := testKeys(t)

	openssh, err := ssh.MarshalPrivateKey(key, "pso2")
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"pkcs1", pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})},
		{"openssh", pem.EncodeToMemory(openssh)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePrivateKey(tt.data)
			require.NoError(t, err)
			assert.True(t, key.Equal(got))
		})
	}
}

func TestParsePublicKey_Formats(t *testing.T) {
	key, _ := testKeys(t)

	pkix, err := MarshalPublicKey(&key.PublicKey)
	require.NoError(t, err)
	sshPub, err := ssh.NewPublicKey(&key.PublicKey)
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"pkix", pkix},
		{"pkcs1", pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(&key.PublicKey)})},
		{"authorized_keys", ssh.MarshalAuthorizedKey(sshPub)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePublicKey(tt.data)
			require.NoError(t, err)
			assert.True(t, key.PublicKey.Equal(got))
		})
	}
}

func TestParseKey_Invalid(t *testing.T) {
	_, err := ParsePrivateKey([]byte("not a key"))
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = ParsePrivateKey(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{1}}))
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = ParsePublicKey([]byte("ssh-rsa !!!"))
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = PEMKeyFile(filepath.Join(t.TempDir(), "missing.pem")).PrivateKey()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestKeyParams_LittleEndian(t *testing.T) {
	key, _ := testKeys(t)
	params := PrivateKeyParams{
		N: le(key.N.Bytes()),
		E: []byte{0x01, 0x00, 0x01},
		D: le(key.D.Bytes()),
		P: le(key.Primes[0].Bytes()),
		Q: le(key.Primes[1].Bytes()),
	}

	got, err := params.PrivateKey()
	require.NoError(t, err)
	assert.Equal(t, 0, key.N.Cmp(got.N))
	assert.Equal(t, 65537, got.E)

	// ключ из параметров расшифровывает то же, что и исходный
	dec, err := NewRC4Handshake(seq(16, 1), seq(16, 2))
	require.NoError(t, err)
	blob, err := EncryptHandshake(&key.PublicKey, dec)
	require.NoError(t, err)
	out, err := DecryptHandshake(got, blob)
	require.NoError(t, err)
	assert.Equal(t, dec, out)

	pub, err := params.PublicKey()
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(pub))

	params.D = le([]byte{3})
	_, err = params.PrivateKey()
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = PublicKeyParams{N: nil, E: []byte{3}}.PublicKey()
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestStaticKey(t *testing.T) {
	key, _ := testKeys(t)

	priv, err := StaticKey{Key: key}.PrivateKey()
	require.NoError(t, err)
	assert.Same(t, key, priv)

	pub, err := StaticKey{Key: key}.PublicKey()
	require.NoError(t, err)
	assert.Same(t, &key.PublicKey, pub)

	pub, err = StaticKey{}.PublicKey()
	require.NoError(t, err)
	assert.Nil(t, pub)

	pub, err = StaticPublicKey{Key: &key.PublicKey}.PublicKey()
	require.NoError(t, err)
	assert.Same(t, &key.PublicKey, pub)
}
