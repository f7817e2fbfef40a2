// Package alert seals anomaly events into authenticated packets and opens
// them again by trying every key in the store, newest first.
package alert

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/smukkama/gridguard/internal/keystore"
	"github.com/smukkama/gridguard/internal/protocol"
)

// Cipher suites. Both use a 12-byte nonce and a 16-byte tag.
const (
	SuiteAESGCM           = "aes-256-gcm"
	SuiteChaCha20Poly1305 = "chacha20-poly1305"
)

// Suites lists the supported cipher suites
var Suites = []string{SuiteAESGCM, SuiteChaCha20Poly1305}

var (
	ErrDecryptionFailed = &AlertError{"decryption failed"}
	ErrPayloadCorrupt   = &AlertError{"payload corrupt"}
	ErrUnknownSuite     = &AlertError{"unknown cipher suite"}
)

// AlertError represents an alert sealing or opening error
type AlertError struct {
	msg string
}

func (e *AlertError) Error() string {
	return e.msg
}

// NewAEAD builds the AEAD for suite keyed with secret.
func NewAEAD(suite string, secret []byte) (cipher.AEAD, error) {
	if len(secret) != keystore.SecretSize {
		return nil, fmt.Errorf("%w: secret has %d bytes", keystore.ErrInvalidKey, len(secret))
	}

	var (
		aead cipher.AEAD
		err  error
	)
	switch suite {
	case SuiteAESGCM, "":
		var block cipher.Block
		block, err = aes.NewCipher(secret)
		if err != nil {
			return nil, err
		}
		aead, err = cipher.NewGCM(block)
	case SuiteChaCha20Poly1305:
		aead, err = chacha20poly1305.New(secret)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSuite, suite)
	}
	if err != nil {
		return nil, err
	}

	if aead.NonceSize() != protocol.NonceSize || aead.Overhead() != protocol.TagSize {
		return nil, fmt.Errorf("%w: %s has nonce %d tag %d", ErrUnknownSuite, suite, aead.NonceSize(), aead.Overhead())
	}
	return aead, nil
}

// ValidSuite reports whether suite names a supported cipher suite
func ValidSuite(suite string) bool {
	for _, s := range Suites {
		if s == suite {
			return true
		}
	}
	return false
}
