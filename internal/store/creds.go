// Package store provides file-based persistence for the client's durable
// state.
//
// The only record the client persists is the logged-in identity
// {id, username, public_key}; everything else (directory, conversation log,
// key handles) is rebuilt from the server on each start. The record lives
// under a fixed filename in the configured home directory and is sealed
// with a passphrase envelope (scrypt key derivation, ChaCha20-Poly1305).
// Absence of the file means "not logged in".
package store

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"safechat/internal/domain"
)

const credsFile = "credentials.enc"

// CredentialFileStore keeps the logged-in identity on disk.
type CredentialFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewCredentialFileStore returns a store rooted at dir.
func NewCredentialFileStore(dir string) *CredentialFileStore {
	return &CredentialFileStore{dir: dir}
}

// Save seals the identity under the passphrase and writes it atomically.
func (s *CredentialFileStore) Save(passphrase string, id domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(id)
	if err != nil {
		return err
	}
	blob, err := seal(passphrase, raw)
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(s.dir, credsFile), blob, 0o600)
}

// Load returns the stored identity. ok is false when no record exists; a
// record that fails to open (wrong passphrase, corruption) is an error.
func (s *CredentialFileStore) Load(passphrase string) (domain.Identity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := os.ReadFile(filepath.Join(s.dir, credsFile))
	if errors.Is(err, os.ErrNotExist) {
		return domain.Identity{}, false, nil
	}
	if err != nil {
		return domain.Identity{}, false, err
	}
	raw, err := open(passphrase, blob)
	if err != nil {
		return domain.Identity{}, false, fmt.Errorf("open credentials: %w", err)
	}
	var id domain.Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return domain.Identity{}, false, err
	}
	return id, true, nil
}

// Clear removes the stored record. Removing an absent record is a no-op.
func (s *CredentialFileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(filepath.Join(s.dir, credsFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// ---------- passphrase envelope ----------

func scryptParams() (N, r, p int) { return 1 << 15, 8, 1 }

type envelope struct {
	Salt []byte
	CT   []byte
}

func seal(passphrase string, plaintext []byte) ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	N, r, p := scryptParams()
	key, err := scrypt.Key([]byte(passphrase), salt, N, r, p, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	// Fresh salt per seal means a fresh key, so a fixed nonce is safe here.
	nonce := make([]byte, aead.NonceSize())
	ct := aead.Seal(nil, nonce, plaintext, salt)
	return json.Marshal(envelope{Salt: salt, CT: ct})
}

func open(passphrase string, blob []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, err
	}
	N, r, p := scryptParams()
	key, err := scrypt.Key([]byte(passphrase), env.Salt, N, r, p, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	return aead.Open(nil, nonce, env.CT, env.Salt)
}

// writeFile writes bytes via a temp file, then atomically replaces the target.
func writeFile(path string, b []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	f, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(mode); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

var _ domain.CredentialStore = (*CredentialFileStore)(nil)
