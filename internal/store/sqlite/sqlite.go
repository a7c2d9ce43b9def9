// Package sqlite stores sessions and turns in a SQLite file using the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/escuta-ai/escuta/backend/internal/model/chat"
	"github.com/escuta-ai/escuta/backend/internal/store"
)

// Store implements store.Store on top of database/sql.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open creates (if needed) and migrates the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serialises writers anyway; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chat_sessions (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id     TEXT    NOT NULL UNIQUE,
		start_time     INTEGER NOT NULL,
		end_time       INTEGER,
		is_active      INTEGER NOT NULL DEFAULT 1,
		remaining_time INTEGER NOT NULL DEFAULT 300,
		duration       INTEGER NOT NULL DEFAULT 300
	);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT    NOT NULL REFERENCES chat_sessions(session_id),
		role       TEXT    NOT NULL CHECK (role IN ('user', 'assistant')),
		content    TEXT    NOT NULL,
		timestamp  INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, id);
	CREATE INDEX IF NOT EXISTS idx_chat_sessions_active ON chat_sessions(is_active);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession inserts a new session row.
func (s *Store) CreateSession(ctx context.Context, session chat.Session) (chat.Session, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (session_id, start_time, end_time, is_active, remaining_time, duration)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO NOTHING`,
		session.ID, toUnix(session.StartTime), nullTime(session.EndTime),
		session.IsActive, session.RemainingTime, session.Duration,
	)
	if err != nil {
		return chat.Session{}, fmt.Errorf("insert session: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return chat.Session{}, fmt.Errorf("insert session: %w", err)
	} else if n == 0 {
		return chat.Session{}, store.ErrSessionExists
	}
	return session, nil
}

// GetSession loads one session.
func (s *Store) GetSession(ctx context.Context, sessionID string) (chat.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, start_time, end_time, is_active, remaining_time, duration
		FROM chat_sessions WHERE session_id = ?`, sessionID)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Session{}, store.ErrSessionNotFound
	}
	if err != nil {
		return chat.Session{}, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// UpdateSession overwrites remaining time, active flag and end time.
func (s *Store) UpdateSession(ctx context.Context, sessionID string, update chat.SessionUpdate) (chat.Session, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE chat_sessions SET remaining_time = ?, is_active = ?, end_time = ?
		WHERE session_id = ?`,
		update.RemainingTime, update.IsActive, nullTime(update.EndTime), sessionID,
	)
	if err != nil {
		return chat.Session{}, fmt.Errorf("update session: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return chat.Session{}, fmt.Errorf("update session: %w", err)
	} else if n == 0 {
		return chat.Session{}, store.ErrSessionNotFound
	}
	return s.GetSession(ctx, sessionID)
}

// AppendMessage inserts a turn for an existing session.
func (s *Store) AppendMessage(ctx context.Context, message chat.Message) (chat.Message, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (session_id, role, content, timestamp)
		SELECT ?, ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM chat_sessions WHERE session_id = ?)`,
		message.SessionID, string(message.Role), message.Content, toUnix(message.Timestamp), message.SessionID,
	)
	if err != nil {
		return chat.Message{}, fmt.Errorf("insert message: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return chat.Message{}, fmt.Errorf("insert message: %w", err)
	} else if n == 0 {
		return chat.Message{}, store.ErrSessionNotFound
	}

	id, err := res.LastInsertId()
	if err != nil {
		return chat.Message{}, fmt.Errorf("insert message id: %w", err)
	}
	message.ID = id
	return message, nil
}

// ListMessages returns a session's turns ordered by insertion.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]chat.Message, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, timestamp
		FROM chat_messages WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]chat.Message, 0)
	for rows.Next() {
		var (
			msg  chat.Message
			role string
			ts   int64
		)
		if err := rows.Scan(&msg.ID, &msg.SessionID, &role, &msg.Content, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = chat.Role(role)
		msg.Timestamp = fromUnix(ts)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// ListActiveSessions returns sessions still flagged active.
func (s *Store) ListActiveSessions(ctx context.Context) ([]chat.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, start_time, end_time, is_active, remaining_time, duration
		FROM chat_sessions WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]chat.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (chat.Session, error) {
	var (
		session chat.Session
		start   int64
		end     sql.NullInt64
	)
	if err := row.Scan(&session.ID, &start, &end, &session.IsActive, &session.RemainingTime, &session.Duration); err != nil {
		return chat.Session{}, err
	}
	session.StartTime = fromUnix(start)
	if end.Valid {
		t := fromUnix(end.Int64)
		session.EndTime = &t
	}
	return session, nil
}

// Timestamps are stored as Unix nanoseconds so they round-trip exactly.
func toUnix(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toUnix(*t), Valid: true}
}
