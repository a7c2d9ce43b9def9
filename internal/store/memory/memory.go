// Package memory is an in-process store, suitable for a single instance.
package memory

import (
	"context"
	"sync"

	"github.com/escuta-ai/escuta/backend/internal/model/chat"
	"github.com/escuta-ai/escuta/backend/internal/store"
)

// Store implements store.Store with maps guarded by a mutex.
type Store struct {
	mu       sync.RWMutex
	nextID   int64
	sessions map[string]chat.Session
	messages map[string][]chat.Message
}

var _ store.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		sessions: make(map[string]chat.Session),
		messages: make(map[string][]chat.Message),
	}
}

// CreateSession stores a new session.
func (s *Store) CreateSession(_ context.Context, session chat.Session) (chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; ok {
		return chat.Session{}, store.ErrSessionExists
	}
	s.sessions[session.ID] = session
	s.messages[session.ID] = make([]chat.Message, 0, 16)
	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Store) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, store.ErrSessionNotFound
	}
	return session, nil
}

// UpdateSession overwrites the mutable session fields.
func (s *Store) UpdateSession(_ context.Context, sessionID string, update chat.SessionUpdate) (chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, store.ErrSessionNotFound
	}
	session = session.Apply(update)
	s.sessions[sessionID] = session
	return session, nil
}

// AppendMessage appends a message to the session history.
func (s *Store) AppendMessage(_ context.Context, message chat.Message) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[message.SessionID]; !ok {
		return chat.Message{}, store.ErrSessionNotFound
	}
	s.nextID++
	message.ID = s.nextID
	s.messages[message.SessionID] = append(s.messages[message.SessionID], message)
	return message, nil
}

// ListMessages returns a copy of the session transcript.
func (s *Store) ListMessages(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[sessionID]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

// ListActiveSessions returns sessions still flagged active.
func (s *Store) ListActiveSessions(_ context.Context) ([]chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := make([]chat.Session, 0)
	for _, session := range s.sessions {
		if session.IsActive {
			active = append(active, session)
		}
	}
	return active, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
