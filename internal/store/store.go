// Package store defines persistence for trial sessions and their turns.
package store

import (
	"context"
	"errors"

	"github.com/escuta-ai/escuta/backend/internal/model/chat"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
)

// Store keeps sessions and the append-only message log of each session.
type Store interface {
	CreateSession(ctx context.Context, session chat.Session) (chat.Session, error)
	GetSession(ctx context.Context, sessionID string) (chat.Session, error)
	UpdateSession(ctx context.Context, sessionID string, update chat.SessionUpdate) (chat.Session, error)
	// AppendMessage assigns the message ID and returns the stored message.
	AppendMessage(ctx context.Context, message chat.Message) (chat.Message, error)
	// ListMessages returns turns in the order they were appended.
	ListMessages(ctx context.Context, sessionID string) ([]chat.Message, error)
	ListActiveSessions(ctx context.Context) ([]chat.Session, error)
	Close() error
}

// Drivers accepted by STORE_DRIVER.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
)
