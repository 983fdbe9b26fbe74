package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// DefaultCacheCapacity is the number of analysis entries kept before the
// least recently used ones are evicted.
const DefaultCacheCapacity = 500

// AnalysisCacheEntry is a memoized analysis result.
type AnalysisCacheEntry struct {
	Key       string
	CreatedAt time.Time
	Result    json.RawMessage
}

// CacheStore persists analysis results keyed by file fingerprint.
// The store never applies a TTL; callers decide whether an entry is fresh.
type CacheStore interface {
	GetAnalysis(key string) (*AnalysisCacheEntry, error)
	PutAnalysis(key string, entry *AnalysisCacheEntry) error
}

// IdempotencyStore records which mutations the relay server already applied.
type IdempotencyStore interface {
	ClaimIdempotencyKey(key, ownerID, operation string) (*IdempotencyRecord, bool, error)
	CompleteIdempotencyKey(key string, response []byte) error
	ReleaseIdempotencyKey(key string) error
	GetIdempotencyKey(key string) (*IdempotencyRecord, error)
}

// SQLiteStore implements CacheStore, IdempotencyStore and SessionStore on
// SQLite.
type SQLiteStore struct {
	db       *sql.DB
	capacity int
	// seq orders cache accesses; it is monotonic within the database.
	seq int64
	mu  sync.RWMutex

	passphrase string
	sessionKey []byte
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithCacheCapacity bounds the analysis cache. Non-positive values disable
// eviction.
func WithCacheCapacity(n int) Option {
	return func(s *SQLiteStore) {
		s.capacity = n
	}
}

// NewSQLiteStore opens (or creates) the database at dbPath.
// Use ":memory:" for a throwaway store.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	// Configure SQLite with WAL mode and busy timeout for better concurrency
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A memory database lives only as long as its connection.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{
		db:       db,
		capacity: DefaultCacheCapacity,
	}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	if dbPath != ":memory:" {
		if err := os.Chmod(dbPath, 0600); err != nil {
			log.Warn().Err(err).Str("path", dbPath).Msg("failed to restrict database permissions")
		}
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	analysisCacheQuery := `
	CREATE TABLE IF NOT EXISTS analysis_cache (
		key TEXT PRIMARY KEY,
		result TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		accessed_seq INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(analysisCacheQuery); err != nil {
		return fmt.Errorf("failed to create analysis_cache table: %w", err)
	}

	idempotencyQuery := `
	CREATE TABLE IF NOT EXISTS idempotency_keys (
		key TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		operation TEXT NOT NULL,
		status TEXT NOT NULL,
		response TEXT,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(idempotencyQuery); err != nil {
		return fmt.Errorf("failed to create idempotency_keys table: %w", err)
	}

	if err := s.db.QueryRow("SELECT COALESCE(MAX(accessed_seq), 0) FROM analysis_cache").Scan(&s.seq); err != nil {
		return fmt.Errorf("failed to read cache sequence: %w", err)
	}

	return s.initSessions()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetAnalysis returns the cached entry for key, or nil, nil if there is none.
// A hit marks the entry as recently used.
func (s *SQLiteStore) GetAnalysis(key string) (*AnalysisCacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result string
	var createdAt int64
	err := s.db.QueryRow(
		"SELECT result, created_at FROM analysis_cache WHERE key = ?",
		key,
	).Scan(&result, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis cache: %w", err)
	}

	s.seq++
	if _, err := s.db.Exec("UPDATE analysis_cache SET accessed_seq = ? WHERE key = ?", s.seq, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to touch analysis cache entry")
	}

	return &AnalysisCacheEntry{
		Key:       key,
		CreatedAt: time.UnixMilli(createdAt),
		Result:    json.RawMessage(result),
	}, nil
}

// PutAnalysis stores entry under key, replacing any previous entry. When the
// cache grows past its capacity the least recently used entries are dropped.
func (s *SQLiteStore) PutAnalysis(key string, entry *AnalysisCacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	s.seq++
	_, err := s.db.Exec(`
		INSERT INTO analysis_cache (key, result, created_at, accessed_seq)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			result = excluded.result,
			created_at = excluded.created_at,
			accessed_seq = excluded.accessed_seq
	`, key, string(entry.Result), createdAt.UnixMilli(), s.seq)
	if err != nil {
		return fmt.Errorf("failed to cache analysis result: %w", err)
	}

	return s.evict()
}

// evict trims the cache to capacity. Callers must hold s.mu.
func (s *SQLiteStore) evict() error {
	if s.capacity <= 0 {
		return nil
	}

	res, err := s.db.Exec(`
		DELETE FROM analysis_cache WHERE key IN (
			SELECT key FROM analysis_cache
			ORDER BY accessed_seq DESC
			LIMIT -1 OFFSET ?
		)
	`, s.capacity)
	if err != nil {
		return fmt.Errorf("failed to evict analysis cache entries: %w", err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		log.Debug().Int64("evicted", n).Int("capacity", s.capacity).Msg("analysis cache trimmed")
	}
	return nil
}

// CountAnalyses returns the number of cached analysis entries.
func (s *SQLiteStore) CountAnalyses() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM analysis_cache").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count analysis cache: %w", err)
	}
	return count, nil
}
