package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
)

const (
	oauth1FileName = "oauth1_token.json"
	oauth2FileName = "oauth2_token.json"
)

// Store persists the token pair as JSON files under the profile directory.
// A corrupt token file is treated as absent so the caller falls back to a
// fresh login, but disk-level failures are surfaced as errors.
type Store struct {
	dir string
	log *slog.Logger
}

func NewStore(dir string, log *slog.Logger) *Store {
	return &Store{dir: dir, log: log}
}

// Dir returns the profile directory backing the store.
func (s *Store) Dir() string { return s.dir }

// Load reads both tokens from disk. A missing or unreadable token yields a
// nil pointer for that slot, never an error, unless the failure indicates a
// broken filesystem.
func (s *Store) Load() (*OAuth1Token, *OAuth2Token, error) {
	var t1 *OAuth1Token
	if err := s.readJSON(oauth1FileName, &t1); err != nil {
		return nil, nil, err
	}
	if t1 != nil && !t1.Valid() {
		s.log.Warn("discarding malformed oauth1 token file", "path", filepath.Join(s.dir, oauth1FileName))
		t1 = nil
	}

	var t2 *OAuth2Token
	if err := s.readJSON(oauth2FileName, &t2); err != nil {
		return nil, nil, err
	}
	if t2 != nil && !t2.Valid() {
		s.log.Warn("discarding malformed oauth2 token file", "path", filepath.Join(s.dir, oauth2FileName))
		t2 = nil
	}
	return t1, t2, nil
}

func (s *Store) readJSON(name string, dst any) error {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		if criticalFSError(err) {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		s.log.Warn("ignoring unreadable token file", "path", path, "error", err)
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.log.Warn("ignoring corrupt token file", "path", path, "error", err)
		return nil
	}
	return nil
}

// Save writes both tokens atomically. Either may be nil, in which case the
// corresponding file is left untouched.
func (s *Store) Save(t1 *OAuth1Token, t2 *OAuth2Token) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("creating profile directory: %w", err)
	}
	if t1 != nil {
		if err := s.writeJSON(oauth1FileName, t1); err != nil {
			return err
		}
	}
	if t2 != nil {
		if err := s.writeJSON(oauth2FileName, t2); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) writeJSON(name string, src any) error {
	path := filepath.Join(s.dir, name)
	data, err := json.MarshalIndent(src, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// Clear removes both token files. Missing files are not an error.
func (s *Store) Clear() error {
	for _, name := range []string{oauth1FileName, oauth2FileName} {
		path := filepath.Join(s.dir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", path, err)
		}
	}
	return nil
}

// criticalFSError reports whether err indicates a filesystem failure that
// should abort the run rather than be papered over with a re-login.
func criticalFSError(err error) bool {
	return errors.Is(err, syscall.ENOSPC) ||
		errors.Is(err, syscall.EROFS) ||
		os.IsPermission(err)
}
