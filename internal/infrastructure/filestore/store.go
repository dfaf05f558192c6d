package filestore

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/aryan0dhankhar/churchconsole/internal/domain"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	nonceSize = 24
	keySalt   = "churchconsole/filestore/v1"
)

var ErrSealedRecord = errors.New("record cannot be opened with the configured secret")

// Store keeps one file per key under a directory.
// With a secret, file contents are sealed with NaCl secretbox.
type Store struct {
	dir    string
	key    *[32]byte
	mu     sync.Mutex
	logger *slog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithSecret seals records at rest with a key derived from secret
func WithSecret(secret string) Option {
	return func(s *Store) {
		if secret == "" {
			return
		}
		derived := argon2.IDKey([]byte(secret), []byte(keySalt), 1, 64*1024, 2, 32)
		var k [32]byte
		copy(k[:], derived)
		s.key = &k
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates the directory if needed and returns a store rooted there
func New(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	s := &Store{dir: dir, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sealed reports whether records are encrypted at rest
func (s *Store) Sealed() bool {
	return s.key != nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+".json")
}

// Get reads the record stored under key
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return s.open(raw)
}

// Set writes the record atomically
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.seal(value)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Delete removes the record. Missing records are ignored.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Ping checks that the directory is still there
func (s *Store) Ping(context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}

func (s *Store) seal(value []byte) ([]byte, error) {
	if s.key == nil {
		return append([]byte(nil), value...), nil
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], value, &nonce, s.key), nil
}

func (s *Store) open(raw []byte) ([]byte, error) {
	if s.key == nil {
		return raw, nil
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return nil, ErrSealedRecord
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	out, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, s.key)
	if !ok {
		return nil, ErrSealedRecord
	}
	return out, nil
}
