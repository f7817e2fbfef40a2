package keystore

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Producer writes new keys into a store's directory. It stands in for the
// external key distribution process and is never used by the detector or
// decoder.
type Producer struct {
	store *Store
}

// NewProducer creates a producer writing into store's directory
func NewProducer(store *Store) *Producer {
	return &Producer{store: store}
}

// Produce writes a fresh random key identified by now's epoch second.
func (p *Producer) Produce(now time.Time) (Key, error) {
	secret := make([]byte, SecretSize)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return Key{}, fmt.Errorf("failed to generate key: %w", err)
	}
	return p.Write(now.Unix(), secret)
}

// Write publishes secret under id. The file appears atomically with its full
// contents and an existing key is never replaced.
func (p *Producer) Write(id int64, secret []byte) (Key, error) {
	if len(secret) != SecretSize {
		return Key{}, fmt.Errorf("%w: secret has %d bytes", ErrInvalidKey, len(secret))
	}
	if err := os.MkdirAll(p.store.dir, 0700); err != nil {
		return Key{}, fmt.Errorf("failed to create key directory: %w", err)
	}

	tmp, err := os.CreateTemp(p.store.dir, ".pending-*")
	if err != nil {
		return Key{}, fmt.Errorf("failed to create temp key: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(secret); err != nil {
		tmp.Close()
		return Key{}, fmt.Errorf("failed to write key: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return Key{}, fmt.Errorf("failed to sync key: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Key{}, fmt.Errorf("failed to close key: %w", err)
	}

	key := Key{ID: id, Secret: append([]byte(nil), secret...), suffix: p.store.suffix}
	if err := os.Link(tmp.Name(), p.store.path(id)); err != nil {
		if errors.Is(err, os.ErrExist) {
			return Key{}, fmt.Errorf("%w: %s", ErrKeyExists, key.Name())
		}
		return Key{}, fmt.Errorf("failed to publish key %s: %w", key.Name(), err)
	}
	return key, nil
}
