package alert

import (
	"errors"
	"fmt"
	"log"

	"github.com/smukkama/gridguard/internal/keystore"
	"github.com/smukkama/gridguard/internal/protocol"
)

// Result is a successfully opened packet
type Result struct {
	Payload    protocol.Payload
	OpenedWith string
	Trials     int
	Skipped    int // unreadable key files passed over
}

// Decoder opens packets by trial decryption against the store
type Decoder struct {
	store *keystore.Store
	suite string
}

// NewDecoder creates a decoder. An empty suite means AES-256-GCM.
func NewDecoder(store *keystore.Store, suite string) *Decoder {
	return &Decoder{store: store, suite: suite}
}

// Decode tries each key newest first and returns the first payload that
// authenticates. A wrong key is expected and only moves on to the next one.
// ErrDecryptionFailed means no key authenticated the packet. ErrPayloadCorrupt
// means one did but the plaintext is not a payload sealed under that key.
func (d *Decoder) Decode(packet []byte) (*Result, error) {
	if len(packet) < protocol.NonceSize+protocol.TagSize {
		return nil, fmt.Errorf("%w: %d bytes", protocol.ErrMalformedPacket, len(packet))
	}
	nonce, sealed := packet[:protocol.NonceSize], packet[protocol.NonceSize:]

	res := &Result{}
	for key, err := range d.store.Descending() {
		if err != nil {
			if errors.Is(err, keystore.ErrInvalidKey) {
				log.Printf("Skipping key: %v", err)
				res.Skipped++
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
		}

		aead, err := NewAEAD(d.suite, key.Secret)
		if err != nil {
			return nil, err
		}
		res.Trials++

		plaintext, err := aead.Open(nil, nonce, sealed, nil)
		if err != nil {
			continue
		}

		payload, err := protocol.DecodePayload(plaintext)
		if err != nil {
			return nil, fmt.Errorf("%w: opened with %s: %v", ErrPayloadCorrupt, key.Name(), err)
		}
		if payload.KeyID != key.Name() {
			return nil, fmt.Errorf("%w: payload names key %q but opened with %s", ErrPayloadCorrupt, payload.KeyID, key.Name())
		}

		res.Payload = *payload
		res.OpenedWith = key.Name()
		return res, nil
	}

	return nil, fmt.Errorf("%w: tried %d keys", ErrDecryptionFailed, res.Trials)
}
