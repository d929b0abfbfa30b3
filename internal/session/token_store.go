// internal/session/token_store.go
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"storefront/internal/clients"
)

// TokenKey is the fixed key the bearer token is stored under.
const TokenKey = "token"

// TokenStore persists the single bearer token across process restarts.
type TokenStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Delete(ctx context.Context) error
}

// NewTokenSource exposes a TokenStore to the API client. A missing token is
// reported as an empty string so the request goes out anonymously.
func NewTokenSource(store TokenStore) clients.TokenSource {
	return clients.TokenSourceFunc(func(ctx context.Context) (string, error) {
		token, err := store.Load(ctx)
		if errors.Is(err, ErrNoToken) {
			return "", nil
		}
		return token, err
	})
}

// MemoryTokenStore keeps the token for the life of the process.
type MemoryTokenStore struct {
	mu    sync.Mutex
	token string
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Load(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", ErrNoToken
	}
	return s.token, nil
}

func (s *MemoryTokenStore) Save(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryTokenStore) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

// FileTokenStore writes the token to a single file readable only by the owner.
type FileTokenStore struct {
	path string
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

func (s *FileTokenStore) Load(ctx context.Context) (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// Save replaces the file atomically so a crash never leaves a truncated token.
func (s *FileTokenStore) Save(ctx context.Context, token string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod token file: %w", err)
	}
	if _, err := tmp.WriteString(token); err != nil {
		tmp.Close()
		return fmt.Errorf("write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("install token file: %w", err)
	}
	return nil
}

func (s *FileTokenStore) Delete(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

// EncryptedTokenStore seals the token before handing it to the wrapped store.
// The last sealed value and its plaintext are cached so repeated loads of an
// unchanged token skip key derivation.
type EncryptedTokenStore struct {
	inner      TokenStore
	passphrase []byte

	mu     sync.Mutex
	sealed string
	token  string
}

func NewEncryptedTokenStore(inner TokenStore, passphrase string) *EncryptedTokenStore {
	return &EncryptedTokenStore{inner: inner, passphrase: []byte(passphrase)}
}

func (s *EncryptedTokenStore) Load(ctx context.Context) (string, error) {
	sealed, err := s.inner.Load(ctx)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed != "" && sealed == s.sealed {
		return s.token, nil
	}
	token, err := openToken(s.passphrase, sealed)
	if err != nil {
		return "", err
	}
	s.sealed, s.token = sealed, token
	return token, nil
}

func (s *EncryptedTokenStore) Save(ctx context.Context, token string) error {
	sealed, err := sealToken(s.passphrase, token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sealed, s.token = "", ""
	if err := s.inner.Save(ctx, sealed); err != nil {
		return err
	}
	s.sealed, s.token = sealed, token
	return nil
}

func (s *EncryptedTokenStore) Delete(ctx context.Context) error {
	s.mu.Lock()
	s.sealed, s.token = "", ""
	s.mu.Unlock()
	return s.inner.Delete(ctx)
}
