// Package client is the Go client for the folio API: an HTTP transport,
// a durable on-disk session, and the bootstrap/guard logic a frontend or
// CLI needs to restore identity across restarts.
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"foliocms.org/internal/auth"
)

// Session is the durable client-side login state: the bearer token plus a
// snapshot of the account it was issued for. The snapshot is a cache; the
// server copy wins whenever the two disagree.
type Session struct {
	Token     string    `json:"token"`
	User      auth.View `json:"user"`
	ExpiresAt int64     `json:"expires_at,omitempty"`
	SavedAt   time.Time `json:"saved_at"`
}

// ErrNoSession is returned by SessionStore.Load when no session is persisted.
var ErrNoSession = errors.New("no saved session")

// SessionStore persists a single session.
//
// Contract:
//   - Load returns ErrNoSession when nothing is stored.
//   - Save replaces any previous session atomically.
//   - Clear is idempotent; clearing an empty store is not an error.
type SessionStore interface {
	Load() (*Session, error)
	Save(*Session) error
	Clear() error
}

// FileStore keeps the session as a JSON file readable only by the owner.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// DefaultSessionPath places the session under the user config directory,
// e.g. ~/.config/folioctl/session.json on Linux.
func DefaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "folioctl", "session.json"), nil
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		// A corrupt file is treated as logged out rather than surfaced
		// to every caller.
		return nil, ErrNoSession
	}
	if sess.Token == "" {
		return nil, ErrNoSession
	}
	return &sess, nil
}

func (s *FileStore) Save(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess == nil || sess.Token == "" {
		return errors.New("refusing to save an empty session")
	}
	sess.SavedAt = time.Now().UTC()

	raw, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	return nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// MemStore is an in-process SessionStore for tests and embedded use.
type MemStore struct {
	mu   sync.Mutex
	sess *Session
}

func NewMemStore() *MemStore { return &MemStore{} }

func (s *MemStore) Load() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return nil, ErrNoSession
	}
	clone := *s.sess
	return &clone, nil
}

func (s *MemStore) Save(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess == nil || sess.Token == "" {
		return errors.New("refusing to save an empty session")
	}
	clone := *sess
	s.sess = &clone
	return nil
}

func (s *MemStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = nil
	return nil
}
