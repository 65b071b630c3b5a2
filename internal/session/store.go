// Package session manages named conversation sessions. All transcript
// mutation goes through the Store; nothing else touches a session's
// message list.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/oshaberi-app/oshaberi/internal/domain"
)

// DefaultID is the session seeded at store creation.
const DefaultID = "default"

var (
	// ErrNotFound means the session id keys no entry.
	ErrNotFound = errors.New("session not found")
	// ErrExists means Add was called with an id already in use.
	ErrExists = errors.New("session already exists")
)

// Store holds every session and tracks which one is selected. Exactly one
// session is selected at all times; the selected id always keys an existing
// entry. Single writer; concurrent reads are safe.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	selected string
}

// NewStore creates a store seeded with an empty default session.
func NewStore() *Store {
	s := &Store{sessions: make(map[string]*domain.Session)}
	s.sessions[DefaultID] = &domain.Session{ID: DefaultID}
	s.selected = DefaultID
	return s
}

// SelectedID returns the id of the active session.
func (s *Store) SelectedID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// Selected returns a copy of the active session.
func (s *Store) Selected() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.sessions[s.selected])
}

// Get returns a copy of the session with the given id.
func (s *Store) Get(id string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return clone(sess), nil
}

// Select switches the active session. Selecting a missing id is an error,
// never an implicit create.
func (s *Store) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.selected = id
	return nil
}

// Add creates an empty session under id.
func (s *Store) Add(id string) error {
	if id == "" {
		return errors.New("session id must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; ok {
		return fmt.Errorf("%w: %s", ErrExists, id)
	}
	s.sessions[id] = &domain.Session{ID: id}
	return nil
}

// Remove deletes a session. If the removed session was selected, selection
// moves to a remaining session; removing the last session reseeds an empty
// default so the store is never without a selected entry.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.sessions, id)

	if len(s.sessions) == 0 {
		s.sessions[DefaultID] = &domain.Session{ID: DefaultID}
		s.selected = DefaultID
		return nil
	}
	if s.selected == id {
		s.selected = s.firstIDLocked()
	}
	return nil
}

// SetMessages atomically replaces a session's transcript.
func (s *Store) SetMessages(id string, msgs []domain.DisplayMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	sess.Messages = append([]domain.DisplayMessage(nil), msgs...)
	return nil
}

// Append adds one turn to a session. No other session is touched.
func (s *Store) Append(id string, msg domain.DisplayMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	sess.Messages = append(sess.Messages, msg)
	return nil
}

// SetSystemMessage sets a session's system message.
func (s *Store) SetSystemMessage(id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	sess.SystemMessage = text
	return nil
}

// Clear empties a session's transcript, keeping its system message.
func (s *Store) Clear(id string) error {
	return s.SetMessages(id, nil)
}

// TrimToLastUser drops every trailing turn whose role is not user, keeping
// the most recent user turn. Returns false without mutating when the
// session holds no user turn at all.
func (s *Store) TrimToLastUser(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	for i := len(sess.Messages) - 1; i >= 0; i-- {
		if sess.Messages[i].Role == domain.RoleUser {
			sess.Messages = sess.Messages[:i+1]
			return true, nil
		}
	}
	return false, nil
}

// List returns all session ids in sorted order.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// snapshot is the persisted wire form of the store.
type snapshot struct {
	Sessions map[string]*domain.Session `json:"sessions"`
	Selected string                     `json:"selected"`
}

// Snapshot serializes the full store state as an opaque JSON blob.
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(snapshot{Sessions: s.sessions, Selected: s.selected})
}

// Restore replaces the store state from a Snapshot blob, repairing the
// selection invariant if the blob violates it.
func (s *Store) Restore(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decoding session state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(snap.Sessions) == 0 {
		snap.Sessions = map[string]*domain.Session{DefaultID: {ID: DefaultID}}
	}
	for id, sess := range snap.Sessions {
		if sess == nil {
			snap.Sessions[id] = &domain.Session{ID: id}
			continue
		}
		sess.ID = id
	}
	s.sessions = snap.Sessions
	s.selected = snap.Selected
	if _, ok := s.sessions[s.selected]; !ok {
		s.selected = s.firstIDLocked()
	}
	return nil
}

// firstIDLocked picks a deterministic session id: default when present,
// otherwise the lexicographically smallest.
func (s *Store) firstIDLocked() string {
	if _, ok := s.sessions[DefaultID]; ok {
		return DefaultID
	}
	first := ""
	for id := range s.sessions {
		if first == "" || id < first {
			first = id
		}
	}
	return first
}

func clone(sess *domain.Session) domain.Session {
	out := *sess
	out.Messages = append([]domain.DisplayMessage(nil), sess.Messages...)
	return out
}
