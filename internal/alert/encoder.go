package alert

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/smukkama/gridguard/internal/keystore"
	"github.com/smukkama/gridguard/internal/protocol"
)

// Event is a triggered anomaly waiting to be sealed
type Event struct {
	Timestamp string
	Score     float64
}

// Packet is a sealed alert: nonce ‖ ciphertext ‖ tag
type Packet struct {
	Data  []byte
	KeyID string
}

// Encoder seals events under the newest key in the store
type Encoder struct {
	store *keystore.Store
	suite string
	rand  io.Reader
}

// NewEncoder creates an encoder. An empty suite means AES-256-GCM.
func NewEncoder(store *keystore.Store, suite string) *Encoder {
	return &Encoder{store: store, suite: suite, rand: rand.Reader}
}

// Encode seals ev under whatever key is newest at this moment.
func (e *Encoder) Encode(ev Event) (*Packet, error) {
	key, err := e.store.Latest()
	if err != nil {
		return nil, err
	}
	return e.EncodeWith(ev, key)
}

// EncodeWith seals ev under key. Every call draws a fresh nonce from the
// system CSPRNG; there is no associated data.
func (e *Encoder) EncodeWith(ev Event, key keystore.Key) (*Packet, error) {
	aead, err := NewAEAD(e.suite, key.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher for key %s: %w", key.Name(), err)
	}

	plaintext, err := protocol.EncodePayload(protocol.Payload{
		Timestamp: ev.Timestamp,
		Error:     ev.Score,
		KeyID:     key.Name(),
	})
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(e.rand, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return &Packet{Data: aead.Seal(nonce, nonce, plaintext, nil), KeyID: key.Name()}, nil
}
