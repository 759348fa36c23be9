package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"tidarr/internal/file"
	"tidarr/internal/models"
	"tidarr/internal/utils/logging"
)

// persistedSession is the on-disk session shape. Only token fields are ever
// written; device-flow fields never leave memory.
type persistedSession struct {
	UserID       string    `json:"user_id"`
	CountryCode  string    `json:"country_code"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// SessionStore reads and writes the persisted session file.
type SessionStore struct {
	Path string
}

// NewSessionStore returns a store bound to the given file path.
func NewSessionStore(path string) *SessionStore {
	return &SessionStore{Path: path}
}

// Load reads the persisted session. Absence or a parse failure yields a
// fresh empty session, not an error.
func (st *SessionStore) Load() *models.Session {
	s := &models.Session{}

	data, err := os.ReadFile(st.Path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.W("Could not read session file %s, starting fresh: %v", st.Path, err)
		}
		return s
	}

	var p persistedSession
	if err := json.Unmarshal(data, &p); err != nil {
		logging.W("Session file %s is malformed, starting fresh: %v", st.Path, err)
		return s
	}

	s.UserID = p.UserID
	s.CountryCode = p.CountryCode
	s.AccessToken = p.AccessToken
	s.RefreshToken = p.RefreshToken
	s.ExpiresAt = p.ExpiresAt
	return s
}

// Persist writes the session's token fields wholesale, atomically. The
// previous file is left untouched on failure.
func (st *SessionStore) Persist(s *models.Session) error {
	p := persistedSession{
		UserID:       s.UserID,
		CountryCode:  s.CountryCode,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt,
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return file.WriteAtomic(st.Path, data, 0o600)
}

// Clear removes the persisted session file.
func (st *SessionStore) Clear() error {
	if err := os.Remove(st.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file %s: %w", st.Path, err)
	}
	return nil
}
