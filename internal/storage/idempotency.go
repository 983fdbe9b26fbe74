package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Idempotency key states.
const (
	IdempotencyPending = "pending"
	IdempotencyDone    = "done"
)

// IdempotencyRecord tracks one mutation submitted to the relay server.
type IdempotencyRecord struct {
	Key       string
	OwnerID   string
	Operation string
	Status    string
	Response  []byte
	CreatedAt time.Time
}

// ClaimIdempotencyKey reserves key for a mutation. It returns true when the
// caller now owns the key and must perform the write. Otherwise the existing
// record is returned and the write must not be repeated.
func (s *SQLiteStore) ClaimIdempotencyKey(key, ownerID, operation string) (*IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	res, err := s.db.Exec(`
		INSERT INTO idempotency_keys (key, owner_id, operation, status, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO NOTHING
	`, key, ownerID, operation, IdempotencyPending, now.UnixMilli())
	if err != nil {
		return nil, false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 1 {
		return &IdempotencyRecord{
			Key:       key,
			OwnerID:   ownerID,
			Operation: operation,
			Status:    IdempotencyPending,
			CreatedAt: time.UnixMilli(now.UnixMilli()),
		}, true, nil
	}

	rec, err := s.getIdempotencyKey(key)
	if err != nil {
		return nil, false, err
	}
	return rec, false, nil
}

// CompleteIdempotencyKey stores the response of a finished mutation.
func (s *SQLiteStore) CompleteIdempotencyKey(key string, response []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(
		`UPDATE idempotency_keys SET status = ?, response = ? WHERE key = ?`,
		IdempotencyDone, string(response), key,
	)
	if err != nil {
		return fmt.Errorf("failed to complete idempotency key: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("idempotency key not found")
	}
	return nil
}

// ReleaseIdempotencyKey forgets a pending key so the mutation can be retried
// after a failed write.
func (s *SQLiteStore) ReleaseIdempotencyKey(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM idempotency_keys WHERE key = ? AND status = ?`, key, IdempotencyPending)
	if err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

// GetIdempotencyKey returns the record for key, or nil, nil if unknown.
func (s *SQLiteStore) GetIdempotencyKey(key string) (*IdempotencyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getIdempotencyKey(key)
}

func (s *SQLiteStore) getIdempotencyKey(key string) (*IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var response sql.NullString
	var createdAt int64
	err := s.db.QueryRow(
		`SELECT key, owner_id, operation, status, response, created_at FROM idempotency_keys WHERE key = ?`,
		key,
	).Scan(&rec.Key, &rec.OwnerID, &rec.Operation, &rec.Status, &response, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query idempotency key: %w", err)
	}

	if response.Valid {
		rec.Response = []byte(response.String)
	}
	rec.CreatedAt = time.UnixMilli(createdAt)
	return &rec, nil
}

// PruneIdempotencyKeys deletes records created before cutoff and returns how
// many were removed.
func (s *SQLiteStore) PruneIdempotencyKeys(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`DELETE FROM idempotency_keys WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune idempotency keys: %w", err)
	}
	return result.RowsAffected()
}
