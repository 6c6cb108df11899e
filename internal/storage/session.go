package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"mygarage/internal/models"

	"github.com/sirupsen/logrus"
)

// SessionStore remembers which user is logged in across runs by keeping
// the username in a one-line file.
type SessionStore struct {
	path   string
	users  *Store
	logger logrus.FieldLogger
}

// NewSessionStore creates a session store that resolves usernames
// against users.
func NewSessionStore(path string, users *Store, logger logrus.FieldLogger) *SessionStore {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SessionStore{
		path:   path,
		users:  users,
		logger: logger.WithField("session", path),
	}
}

// Save overwrites the session file with username.
func (s *SessionStore) Save(username string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(username), 0600); err != nil {
		s.logger.WithError(err).Error("Could not save session")
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Username returns the username recorded in the session file, if any.
func (s *SessionStore) Username() (string, bool) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false
	}
	if err != nil {
		s.logger.WithError(err).Warn("Could not read session")
		return "", false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			s.logger.WithError(err).Warn("Could not read session")
		}
		return "", false
	}
	username := scanner.Text()
	return username, username != ""
}

// CurrentUser returns the stored user named by the session file. It
// reports false when there is no session or the user is no longer stored.
func (s *SessionStore) CurrentUser() (*models.User, bool) {
	username, ok := s.Username()
	if !ok {
		return nil, false
	}
	for _, u := range s.users.LoadAll() {
		if u.Username == username {
			return u, true
		}
	}
	s.logger.WithField("username", username).Warn("Session user not found in store, falling back to login")
	return nil, false
}

// Clear deletes the session file. Clearing an absent session is a no-op.
func (s *SessionStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
