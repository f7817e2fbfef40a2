// Package keystore exposes the rotating pool of alert keys.
//
// Keys are immutable 32-byte files named <creation epoch seconds><suffix>
// and written by an external producer. The directory is the only source of
// truth: every query lists it again, so a key written between two calls is
// visible to the second one.
package keystore

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// SecretSize is the length of every key secret (AES-256 / ChaCha20).
const SecretSize = 32

// DefaultSuffix is the file extension of key files.
const DefaultSuffix = ".bin"

// Key is one immutable secret.
type Key struct {
	ID     int64
	Secret []byte
	suffix string
}

// Name returns the key's file name, which is also its identifier in payloads.
func (k Key) Name() string {
	return strconv.FormatInt(k.ID, 10) + k.suffix
}

var (
	ErrNoKeysAvailable = &KeyError{"no keys available"}
	ErrInvalidKey      = &KeyError{"invalid key file"}
	ErrKeyExists       = &KeyError{"key already exists"}
)

// KeyError represents a key store error
type KeyError struct {
	msg string
}

func (e *KeyError) Error() string {
	return e.msg
}

// Store reads keys from a directory. It holds no cached state.
type Store struct {
	dir    string
	suffix string
}

// NewStore creates a store over dir. An empty suffix means DefaultSuffix.
func NewStore(dir, suffix string) *Store {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	return &Store{dir: dir, suffix: suffix}
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) Suffix() string {
	return s.suffix
}

// Open creates a store and verifies its directory can be listed. Processes
// call it at startup; an unreadable key directory is fatal there.
func Open(dir, suffix string) (*Store, error) {
	s := NewStore(dir, suffix)
	if err := s.Check(); err != nil {
		return nil, err
	}
	return s, nil
}

// Check verifies the key directory can be listed.
func (s *Store) Check() error {
	_, err := s.IDs()
	return err
}

// IDs lists the key ids currently on disk, newest first. Names whose stem is not a decimal integer
// are ignored. Numeric order equals lexicographic order for same-width
// epoch names.
func (s *Store) IDs() ([]int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list key directory: %w", err)
	}

	var ids []int64
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, s.suffix) {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSuffix(name, s.suffix), 10, 64)
		if err != nil || id < 0 {
			continue
		}
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b int64) int { return cmp.Compare(b, a) })
	return ids, nil
}

// Latest returns the newest readable key.
func (s *Store) Latest() (Key, error) {
	var firstErr error
	for key, err := range s.Descending() {
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		return key, nil
	}
	if firstErr != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrNoKeysAvailable, firstErr)
	}
	return Key{}, ErrNoKeysAvailable
}

// Descending yields keys newest first. The directory is listed when
// iteration starts and each file is read only when the caller asks for it.
// A listing failure yields one error and ends the sequence. Any per-key
// failure yields an ErrInvalidKey error and iteration continues with the
// next one, so Latest and a full scan agree on which keys are usable.
func (s *Store) Descending() iter.Seq2[Key, error] {
	return func(yield func(Key, error) bool) {
		ids, err := s.IDs()
		if err != nil {
			yield(Key{}, err)
			return
		}
		for _, id := range ids {
			key, err := s.read(id)
			if !yield(key, err) {
				return
			}
		}
	}
}

// KeyName returns the file name a key with this id has in the store.
func (s *Store) KeyName(id int64) string {
	return strconv.FormatInt(id, 10) + s.suffix
}

func (s *Store) path(id int64) string {
	return filepath.Join(s.dir, s.KeyName(id))
}

func (s *Store) read(id int64) (Key, error) {
	key := Key{ID: id, suffix: s.suffix}
	secret, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return key, fmt.Errorf("%w: %s vanished", ErrInvalidKey, key.Name())
		}
		return key, fmt.Errorf("%w: %s: %v", ErrInvalidKey, key.Name(), err)
	}
	if len(secret) != SecretSize {
		return key, fmt.Errorf("%w: %s has %d bytes", ErrInvalidKey, key.Name(), len(secret))
	}
	key.Secret = secret
	return key, nil
}
