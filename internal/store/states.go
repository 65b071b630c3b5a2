package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound is returned when a state blob does not exist.
var ErrNotFound = errors.New("state not found")

// Buckets the gateway persists under.
const (
	BucketSettings = "settings"
	BucketSessions = "sessions"
)

// StateStore persists opaque JSON blobs keyed by bucket and id. The gateway
// stores client settings and session snapshots through it without looking
// inside.
type StateStore interface {
	// Get returns the blob, or ErrNotFound.
	Get(bucket, id string) (json.RawMessage, error)

	// Put inserts or replaces the blob.
	Put(bucket, id string, data json.RawMessage) error

	// Delete removes the blob; missing ids return ErrNotFound.
	Delete(bucket, id string) error

	// All returns every blob in the bucket keyed by id.
	All(bucket string) (map[string]json.RawMessage, error)
}

// SQLiteStates is the StateStore over the states table.
type SQLiteStates struct {
	db *DB
}

// NewSQLiteStates creates a state store using the given database.
func NewSQLiteStates(db *DB) *SQLiteStates {
	return &SQLiteStates{db: db}
}

func (s *SQLiteStates) Get(bucket, id string) (json.RawMessage, error) {
	var data string
	err := s.db.sql.QueryRow(
		"SELECT data FROM states WHERE bucket = ? AND id = ?", bucket, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading state %s/%s: %w", bucket, id, err)
	}
	return json.RawMessage(data), nil
}

func (s *SQLiteStates) Put(bucket, id string, data json.RawMessage) error {
	_, err := s.db.sql.Exec(
		`INSERT INTO states (bucket, id, data, updated_at)
		 VALUES (?, ?, ?, datetime('now'))
		 ON CONFLICT(bucket, id) DO UPDATE SET
		   data = excluded.data,
		   updated_at = excluded.updated_at`,
		bucket, id, string(data),
	)
	if err != nil {
		return fmt.Errorf("writing state %s/%s: %w", bucket, id, err)
	}
	return nil
}

func (s *SQLiteStates) Delete(bucket, id string) error {
	res, err := s.db.sql.Exec(
		"DELETE FROM states WHERE bucket = ? AND id = ?", bucket, id,
	)
	if err != nil {
		return fmt.Errorf("deleting state %s/%s: %w", bucket, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting state %s/%s: %w", bucket, id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStates) All(bucket string) (map[string]json.RawMessage, error) {
	rows, err := s.db.sql.Query(
		"SELECT id, data FROM states WHERE bucket = ? ORDER BY id", bucket,
	)
	if err != nil {
		return nil, fmt.Errorf("listing states in %s: %w", bucket, err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scanning state row: %w", err)
		}
		out[id] = json.RawMessage(data)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing states in %s: %w", bucket, err)
	}
	return out, nil
}

// MemoryStates is an in-memory StateStore for tests.
type MemoryStates struct {
	mu   sync.RWMutex
	data map[string]map[string]json.RawMessage
}

// NewMemoryStates creates an empty in-memory state store.
func NewMemoryStates() *MemoryStates {
	return &MemoryStates{data: make(map[string]map[string]json.RawMessage)}
}

func (m *MemoryStates) Get(bucket, id string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.data[bucket][id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make(json.RawMessage, len(blob))
	copy(out, blob)
	return out, nil
}

func (m *MemoryStates) Put(bucket, id string, data json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[bucket] == nil {
		m.data[bucket] = make(map[string]json.RawMessage)
	}
	blob := make(json.RawMessage, len(data))
	copy(blob, data)
	m.data[bucket][id] = blob
	return nil
}

func (m *MemoryStates) Delete(bucket, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[bucket][id]; !ok {
		return ErrNotFound
	}
	delete(m.data[bucket], id)
	return nil
}

func (m *MemoryStates) All(bucket string) (map[string]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]json.RawMessage, len(m.data[bucket]))
	ids := make([]string, 0, len(m.data[bucket]))
	for id := range m.data[bucket] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		blob := m.data[bucket][id]
		cp := make(json.RawMessage, len(blob))
		copy(cp, blob)
		out[id] = cp
	}
	return out, nil
}
