package storage

import (
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNoSessionKey is returned by the session methods when the store was
// opened without WithSessionKey.
var ErrNoSessionKey = errors.New("session storage requires an encryption key")

// StoredSession is a user's most recent token pair. Tokens are encrypted at
// rest.
type StoredSession struct {
	UserID       string    `json:"-"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	UpdatedAt    time.Time `json:"-"`
}

// SessionStore keeps rotated tokens between runs.
type SessionStore interface {
	GetSession(userID string) (*StoredSession, error)
	SaveSession(session *StoredSession) error
}

// WithSessionKey enables encrypted session storage. The key is derived from
// passphrase and a random salt kept in the database.
func WithSessionKey(passphrase string) Option {
	return func(s *SQLiteStore) {
		s.passphrase = passphrase
	}
}

func (s *SQLiteStore) initSessions() error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		user_id TEXT PRIMARY KEY,
		tokens TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS store_meta (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}

	if s.passphrase == "" {
		return nil
	}

	salt, err := s.kdfSalt()
	if err != nil {
		return err
	}
	s.sessionKey, err = deriveKey(s.passphrase, salt)
	if err != nil {
		return fmt.Errorf("failed to derive session key: %w", err)
	}
	return nil
}

// kdfSalt returns the database's salt, creating it on first use.
func (s *SQLiteStore) kdfSalt() ([]byte, error) {
	var encoded string
	err := s.db.QueryRow("SELECT value FROM store_meta WHERE name = 'kdf_salt'").Scan(&encoded)
	if err == nil {
		return base64.StdEncoding.DecodeString(encoded)
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to read key salt: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate key salt: %w", err)
	}
	if _, err := s.db.Exec(
		"INSERT INTO store_meta (name, value) VALUES ('kdf_salt', ?)",
		base64.StdEncoding.EncodeToString(salt),
	); err != nil {
		return nil, fmt.Errorf("failed to store key salt: %w", err)
	}
	return salt, nil
}

// GetSession returns the stored tokens for userID, or nil, nil if none were
// saved.
func (s *SQLiteStore) GetSession(userID string) (*StoredSession, error) {
	if s.sessionKey == nil {
		return nil, ErrNoSessionKey
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var encrypted string
	var updatedAt int64
	err := s.db.QueryRow(
		"SELECT tokens, updated_at FROM sessions WHERE user_id = ?",
		userID,
	).Scan(&encrypted, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	plaintext, err := decrypt(encrypted, s.sessionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt session: %w", err)
	}

	var session StoredSession
	if err := json.Unmarshal(plaintext, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	session.UserID = userID
	session.UpdatedAt = time.UnixMilli(updatedAt)
	return &session, nil
}

// SaveSession replaces the stored tokens for session.UserID.
func (s *SQLiteStore) SaveSession(session *StoredSession) error {
	if s.sessionKey == nil {
		return ErrNoSessionKey
	}
	if session.UserID == "" {
		return errors.New("session has no user id")
	}

	plaintext, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	encrypted, err := encrypt(plaintext, s.sessionKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt session: %w", err)
	}

	updatedAt := session.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO sessions (user_id, tokens, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			tokens = excluded.tokens,
			updated_at = excluded.updated_at
	`, session.UserID, encrypted, updatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}
