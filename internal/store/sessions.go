// Package store persists chat sessions and their turns in SQLite so
// conversations survive restarts and can be listed and replayed.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Turn is one persisted chat message.
type Turn struct {
	SessionID string
	Seq       int
	Role      string
	Content   string
	CreatedAt time.Time
}

// SessionInfo summarizes one stored session.
type SessionInfo struct {
	ID        string
	CreatedAt time.Time
	TurnCount int
}

// SessionStore is a SQLite-backed session log. database/sql serializes access
// through its connection pool, so the store is safe for concurrent use.
type SessionStore struct {
	db     *sql.DB
	logger *zap.Logger
}

const sessionSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS turns (
	session_id TEXT NOT NULL REFERENCES sessions(id),
	seq        INTEGER NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (session_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id);
`

// OpenSessions opens or creates the session database at path.
func OpenSessions(path string, logger *zap.Logger) (*SessionStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open session db: %w", err)
	}
	if _, err := db.Exec(sessionSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init session schema: %w", err)
	}
	logger.Debug("session store opened", zap.String("path", path))
	return &SessionStore{db: db, logger: logger}, nil
}

// EnsureSession creates the session row if it does not exist yet.
func (s *SessionStore) EnsureSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, created_at) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: ensure session %s: %w", id, err)
	}
	return nil
}

// AppendTurn stores a turn with the next sequence number for the session.
func (s *SessionStore) AppendTurn(ctx context.Context, sessionID, role, content string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin append: %w", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE session_id = ?`,
		sessionID).Scan(&next); err != nil {
		return fmt.Errorf("store: next seq: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO turns (session_id, seq, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		sessionID, next, role, content, time.Now().UTC()); err != nil {
		return fmt.Errorf("store: insert turn: %w", err)
	}
	return tx.Commit()
}

// ListSessions returns all sessions, newest first.
func (s *SessionStore) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.created_at, COUNT(t.seq)
		FROM sessions s
		LEFT JOIN turns t ON t.session_id = s.id
		GROUP BY s.id
		ORDER BY s.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	var infos []SessionInfo
	for rows.Next() {
		var info SessionInfo
		if err := rows.Scan(&info.ID, &info.CreatedAt, &info.TurnCount); err != nil {
			return nil, fmt.Errorf("store: scan session: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// LoadTurns returns a session's turns in sequence order.
func (s *SessionStore) LoadTurns(ctx context.Context, sessionID string) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, seq, role, content, created_at FROM turns WHERE session_id = ? ORDER BY seq`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: load turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.SessionID, &t.Seq, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// Close releases the database handle.
func (s *SessionStore) Close() error {
	return s.db.Close()
}
