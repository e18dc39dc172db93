// Package crypto implements the RSA handshake and the three symmetric cipher
// personalities of the PSO2 transport: AES legacy, AES NGS and RC4.
//
// A Cipher is owned by a single goroutine. Split produces two independent
// halves for a connection whose read and write sides run concurrently.
package crypto

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/udisondev/pso2go/internal/metrics"
	"github.com/udisondev/pso2go/internal/variant"
)

var (
	// ErrEncryption is returned for every handshake, decrypt or encrypt failure.
	// The cause is never exposed to the caller.
	ErrEncryption = errors.New("encryption error")
)

// UnsupportedVariantError is returned when a handshake selects a personality
// that is not enabled.
type UnsupportedVariantError = variant.UnsupportedError

// Mode identifies a cipher personality.
type Mode uint8

const (
	ModeNone Mode = iota
	ModeAESLegacy
	ModeAESNGS
	ModeRC4
)

func (m Mode) String() string {
	switch m {
	case ModeAESLegacy:
		return "aes"
	case ModeAESNGS:
		return "aes_ngs"
	case ModeRC4:
		return "rc4"
	default:
		return "none"
	}
}

// Personalities is the set of cipher personalities a connection accepts.
type Personalities uint8

const (
	PersonalityAESLegacy Personalities = 1 << iota
	PersonalityAESNGS
	PersonalityRC4

	AllPersonalities = PersonalityAESLegacy | PersonalityAESNGS | PersonalityRC4
)

// Has reports whether the personality of m is enabled.
func (p Personalities) Has(m Mode) bool {
	switch m {
	case ModeAESLegacy:
		return p&PersonalityAESLegacy != 0
	case ModeAESNGS:
		return p&PersonalityAESNGS != 0
	case ModeRC4:
		return p&PersonalityRC4 != 0
	default:
		return true
	}
}

// ParsePersonalities parses names as printed by Mode.String.
// An empty list enables every personality.
func ParsePersonalities(names []string) (Personalities, error) {
	if len(names) == 0 {
		return AllPersonalities, nil
	}
	var p Personalities
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "aes":
			p |= PersonalityAESLegacy
		case "aes_ngs":
			p |= PersonalityAESNGS
		case "rc4":
			p |= PersonalityRC4
		default:
			return 0, fmt.Errorf("unknown cipher personality %q", name)
		}
	}
	return p, nil
}

// Cipher is the symmetric state of one connection.
type Cipher interface {
	// Encrypt turns one plain frame into its wire form. Empty input yields empty output.
	Encrypt(plain []byte) ([]byte, error)
	// Decrypt turns one wire frame (or, for RC4, any stream chunk) into plain bytes.
	Decrypt(data []byte) ([]byte, error)
	Mode() Mode
	// Secret returns the secret derived from the handshake.
	Secret() []byte
	// Split returns independent halves for encryption and decryption.
	Split() (enc, dec Cipher)
}

// fail records a cipher failure and hides its cause.
func fail(m Mode, op string, cause error) error {
	slog.Debug("cipher failure", "personality", m, "op", op, "error", cause)
	metrics.Default().CipherErrors.WithLabelValues(m.String()).Inc()
	return ErrEncryption
}
