// Package filestore keeps the session tokens in a single file so a session
// survives process restarts. The file is replaced atomically on every write
// and can optionally be sealed with XChaCha20-Poly1305.
package filestore

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/go-auth-client/tokenstore"
	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrCorrupt is returned when the token file exists but cannot be decoded or
// opened with the configured key.
var ErrCorrupt = errors.New("token file corrupt")

var _ tokenstore.Store = (*Store)(nil)

type document struct {
	AccessToken  string `json:"jwtToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Store is a file-backed tokenstore.Store. All operations go to disk; there is
// no in-memory copy that could go stale.
type Store struct {
	path string
	aead cipherAEAD
	lock sync.Mutex
}

type cipherAEAD interface {
	NonceSize() int
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

type Option func(*Store) error

// WithSealKey seals the file contents with the given 32-byte key.
func WithSealKey(key []byte) Option {
	return func(s *Store) error {
		if len(key) == 0 {
			return nil
		}
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return errors.Wrap(err, "[filestore.WithSealKey]")
		}
		s.aead = aead
		return nil
	}
}

// New returns a store writing to path. The parent directory is created if
// needed.
func New(path string, options ...Option) (*Store, error) {
	if path == "" {
		return nil, errors.New("[filestore.New] path is required")
	}
	s := &Store{path: path}
	for _, opt := range options {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "[filestore.New] create directory")
	}
	return s, nil
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	if err := tokenstore.CheckKey(key); err != nil {
		return "", err
	}
	s.lock.Lock()
	defer s.lock.Unlock()

	doc, err := s.read()
	if err != nil {
		return "", err
	}
	if key == tokenstore.AccessTokenKey {
		return doc.AccessToken, nil
	}
	return doc.RefreshToken, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	if err := tokenstore.CheckKey(key); err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if key == tokenstore.AccessTokenKey {
		doc.AccessToken = value
	} else {
		doc.RefreshToken = value
	}
	return s.write(doc)
}

func (s *Store) Remove(ctx context.Context, key string) error {
	return s.Set(ctx, key, "")
}

func (s *Store) GetPair(_ context.Context) (tokenstore.Pair, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	doc, err := s.read()
	if err != nil {
		return tokenstore.Pair{}, err
	}
	return tokenstore.Pair{AccessToken: doc.AccessToken, RefreshToken: doc.RefreshToken}, nil
}

func (s *Store) SetPair(_ context.Context, pair tokenstore.Pair) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.write(document{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (s *Store) ClearPair(_ context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[filestore.ClearPair]")
	}
	return nil
}

func (s *Store) read() (document, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return document{}, nil
	}
	if err != nil {
		return document{}, errors.Wrap(err, "[filestore.read]")
	}

	if s.aead != nil {
		if data, err = s.open(data); err != nil {
			return document{}, err
		}
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return document{}, errors.Wrap(ErrCorrupt, err.Error())
	}
	return doc, nil
}

// write replaces the file through a temporary sibling and a rename so a crash
// never leaves half a pair on disk.
func (s *Store) write(doc document) error {
	if doc.AccessToken == "" && doc.RefreshToken == "" {
		err := os.Remove(s.path)
		if err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "[filestore.write] remove")
		}
		return nil
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "[filestore.write] marshal")
	}
	if s.aead != nil {
		if data, err = s.seal(data); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "[filestore.write] create temp")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "[filestore.write] write temp")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "[filestore.write] sync temp")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "[filestore.write] close temp")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrap(err, "[filestore.write] rename")
	}
	return nil
}

func (s *Store) seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "[filestore.seal] nonce")
	}
	return s.aead.Seal(nonce, nonce, plaintext, []byte(s.path)), nil
}

func (s *Store) open(sealed []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(sealed) < n {
		return nil, errors.Wrap(ErrCorrupt, "sealed payload too short")
	}
	plaintext, err := s.aead.Open(nil, sealed[:n], sealed[n:], []byte(s.path))
	if err != nil {
		return nil, errors.Wrap(ErrCorrupt, err.Error())
	}
	return plaintext, nil
}
