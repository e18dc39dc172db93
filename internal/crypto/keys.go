package crypto

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"slices"

	"golang.org/x/crypto/ssh"
)

var (
	// ErrInvalidKey is returned when key material cannot be parsed as RSA.
	ErrInvalidKey = errors.New("invalid RSA key")
)

// PrivateKeySource supplies the key used to decrypt handshakes.
type PrivateKeySource interface {
	PrivateKey() (*rsa.PrivateKey, error)
}

// PublicKeySource supplies the key handshakes are re-encrypted for.
type PublicKeySource interface {
	PublicKey() (*rsa.PublicKey, error)
}

// StaticKey is an already loaded private key. It also serves its public half.
type StaticKey struct {
	Key *rsa.PrivateKey
}

func (s StaticKey) PrivateKey() (*rsa.PrivateKey, error) { return s.Key, nil }

func (s StaticKey) PublicKey() (*rsa.PublicKey, error) {
	if s.Key == nil {
		return nil, nil
	}
	return &s.Key.PublicKey, nil
}

// StaticPublicKey is an already loaded public key.
type StaticPublicKey struct {
	Key *rsa.PublicKey
}

func (s StaticPublicKey) PublicKey() (*rsa.PublicKey, error) { return s.Key, nil }

// PEMKeyFile is the path of a key file.
// Private keys may be PKCS#1, PKCS#8 or OpenSSH; public keys PKIX, PKCS#1 or
// an authorized_keys line. A private key file also serves its public half.
type PEMKeyFile string

func (f PEMKeyFile) PrivateKey() (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(string(f))
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	key, err := ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", f, err)
	}
	return key, nil
}

func (f PEMKeyFile) PublicKey() (*rsa.PublicKey, error) {
	data, err := os.ReadFile(string(f))
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}
	key, err := ParsePublicKey(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", f, err)
	}
	return key, nil
}

// PrivateKeyParams is a private key in component form. All values are little-endian.
type PrivateKeyParams struct {
	N, E, D, P, Q []byte
}

func (p PrivateKeyParams) PrivateKey() (*rsa.PrivateKey, error) {
	e := leInt(p.E)
	if !e.IsInt64() || e.Int64() > 1<<31-1 {
		return nil, fmt.Errorf("public exponent: %w", ErrInvalidKey)
	}
	key := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{N: leInt(p.N), E: int(e.Int64())},
		D:         leInt(p.D),
		Primes:    []*big.Int{leInt(p.P), leInt(p.Q)},
	}
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	key.Precompute()
	return key, nil
}

func (p PrivateKeyParams) PublicKey() (*rsa.PublicKey, error) {
	return PublicKeyParams{N: p.N, E: p.E}.PublicKey()
}

// PublicKeyParams is a public key in component form. All values are little-endian.
type PublicKeyParams struct {
	N, E []byte
}

func (p PublicKeyParams) PublicKey() (*rsa.PublicKey, error) {
	n, e := leInt(p.N), leInt(p.E)
	if n.Sign() <= 0 || !e.IsInt64() || e.Int64() < 3 || e.Int64() > 1<<31-1 {
		return nil, ErrInvalidKey
	}
	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}

func leInt(b []byte) *big.Int {
	be := slices.Clone(b)
	slices.Reverse(be)
	return new(big.Int).SetBytes(be)
}

// ParsePrivateKey parses a PEM encoded RSA private key.
func ParsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block: %w", ErrInvalidKey)
	}

	var (
		raw any
		err error
	)
	switch block.Type {
	case "RSA PRIVATE KEY":
		raw, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		raw, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	case "OPENSSH PRIVATE KEY":
		raw, err = ssh.ParseRawPrivateKey(data)
	default:
		return nil, fmt.Errorf("PEM block %q: %w", block.Type, ErrInvalidKey)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	key, ok := raw.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%T: %w", raw, ErrInvalidKey)
	}
	return key, nil
}

// ParsePublicKey parses a PEM encoded RSA public key, the public half of a
// PEM encoded private key, or an OpenSSH authorized_keys line.
func ParsePublicKey(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return parseAuthorizedKey(data)
	}

	var (
		raw any
		err error
	)
	switch block.Type {
	case "PUBLIC KEY":
		raw, err = x509.ParsePKIXPublicKey(block.Bytes)
	case "RSA PUBLIC KEY":
		raw, err = x509.ParsePKCS1PublicKey(block.Bytes)
	default:
		priv, perr := ParsePrivateKey(data)
		if perr != nil {
			return nil, perr
		}
		return &priv.PublicKey, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	key, ok := raw.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%T: %w", raw, ErrInvalidKey)
	}
	return key, nil
}

func parseAuthorizedKey(data []byte) (*rsa.PublicKey, error) {
	pub, _, _, _, err := ssh.ParseAuthorizedKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	cpk, ok := pub.(ssh.CryptoPublicKey)
	if !ok {
		return nil, fmt.Errorf("%s key: %w", pub.Type(), ErrInvalidKey)
	}
	key, ok := cpk.CryptoPublicKey().(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%s key: %w", pub.Type(), ErrInvalidKey)
	}
	return key, nil
}

// MarshalPrivateKey encodes key as a PKCS#8 PEM block.
func MarshalPrivateKey(key *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshaling private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// MarshalPublicKey encodes key as a PKIX PEM block.
func MarshalPublicKey(key *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshaling public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}
