// Package badgerstore stores sessions and turns in an embedded Badger key-value database.
package badgerstore

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/escuta-ai/escuta/backend/internal/model/chat"
	"github.com/escuta-ai/escuta/backend/internal/store"
)

// Key layout:
//
//	session/<sessionID>              -> JSON chat.Session
//	message/<hex sessionID>/<%020d id> -> JSON chat.Message
//
// The session id is hex encoded so one id can never be a prefix of another's
// message keys. Zero-padded ids keep a session's messages in append order.
const (
	sessionPrefix = "session/"
	messagePrefix = "message/"
	sequenceKey   = "seq/message"
)

// Store implements store.Store on Badger.
type Store struct {
	db  *badger.DB
	seq *badger.Sequence
}

var _ store.Store = (*Store)(nil)

// Options selects where the database lives.
type Options struct {
	Dir      string
	InMemory bool
}

// Open opens the database described by opts.
func Open(opts Options) (*Store, error) {
	bopts := badger.DefaultOptions(opts.Dir).WithLoggingLevel(badger.ERROR)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	seq, err := db.GetSequence([]byte(sequenceKey), 100)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to lease message sequence: %w", err)
	}

	return &Store{db: db, seq: seq}, nil
}

// Close releases the sequence lease and closes the database.
func (s *Store) Close() error {
	if err := s.seq.Release(); err != nil {
		s.db.Close()
		return fmt.Errorf("release message sequence: %w", err)
	}
	return s.db.Close()
}

func sessionKey(id string) []byte {
	return []byte(sessionPrefix + id)
}

func messageKeyPrefix(sessionID string) []byte {
	return []byte(messagePrefix + hex.EncodeToString([]byte(sessionID)) + "/")
}

func messageKey(sessionID string, id int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", messageKeyPrefix(sessionID), id))
}

func getSession(txn *badger.Txn, id string) (chat.Session, error) {
	item, err := txn.Get(sessionKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return chat.Session{}, store.ErrSessionNotFound
	}
	if err != nil {
		return chat.Session{}, err
	}

	var session chat.Session
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &session)
	})
	return session, err
}

func putJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// CreateSession stores a new session.
func (s *Store) CreateSession(_ context.Context, session chat.Session) (chat.Session, error) {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := getSession(txn, session.ID); err == nil {
			return store.ErrSessionExists
		} else if !errors.Is(err, store.ErrSessionNotFound) {
			return err
		}
		return putJSON(txn, sessionKey(session.ID), session)
	})
	if err != nil {
		return chat.Session{}, err
	}
	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Store) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	var session chat.Session
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		session, err = getSession(txn, sessionID)
		return err
	})
	return session, err
}

// UpdateSession overwrites the mutable session fields.
func (s *Store) UpdateSession(_ context.Context, sessionID string, update chat.SessionUpdate) (chat.Session, error) {
	var session chat.Session
	err := s.db.Update(func(txn *badger.Txn) error {
		current, err := getSession(txn, sessionID)
		if err != nil {
			return err
		}
		session = current.Apply(update)
		return putJSON(txn, sessionKey(sessionID), session)
	})
	if err != nil {
		return chat.Session{}, err
	}
	return session, nil
}

// AppendMessage stores a turn under the next sequence id.
func (s *Store) AppendMessage(_ context.Context, message chat.Message) (chat.Message, error) {
	next, err := s.seq.Next()
	if err != nil {
		return chat.Message{}, fmt.Errorf("next message id: %w", err)
	}
	// Sequences start at zero; ids start at one like the SQL drivers.
	message.ID = int64(next) + 1

	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := getSession(txn, message.SessionID); err != nil {
			return err
		}
		return putJSON(txn, messageKey(message.SessionID, message.ID), message)
	})
	if err != nil {
		return chat.Message{}, err
	}
	return message, nil
}

// ListMessages returns the session transcript in append order.
func (s *Store) ListMessages(_ context.Context, sessionID string) ([]chat.Message, error) {
	messages := make([]chat.Message, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := getSession(txn, sessionID); err != nil {
			return err
		}

		prefix := messageKeyPrefix(sessionID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var msg chat.Message
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			}); err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// ListActiveSessions scans sessions still flagged active.
func (s *Store) ListActiveSessions(_ context.Context) ([]chat.Session, error) {
	sessions := make([]chat.Session, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(sessionPrefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var session chat.Session
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &session)
			}); err != nil {
				return err
			}
			if session.IsActive {
				sessions = append(sessions, session)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sessions, nil
}
