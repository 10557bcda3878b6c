// Package sqlitestore persists session conversation histories in SQLite so
// they survive process restarts. It stores snapshots keyed by session id;
// the in-process eviction and system-prompt rules stay with package memory.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kbukum/uniai/encryption"
	"github.com/kbukum/uniai/llm"
)

// Store is a session-scoped history store backed by SQLite. All public
// methods are safe for concurrent use (SQLite serializes writes).
type Store struct {
	db     *sql.DB
	cipher encryption.Cipher
}

// Option configures Open.
type Option func(*Store)

// WithCipher encrypts message content at rest. Once a store has been
// written with a cipher, later opens must use the same cipher (and key) or
// Load fails.
func WithCipher(c encryption.Cipher) Option {
	return func(s *Store) { s.cipher = c }
}

// Open creates a store at the given database path. The schema is created
// automatically on first use.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversation_messages (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		seq        INTEGER NOT NULL,
		role       TEXT NOT NULL,
		content    TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversation_messages_session
		ON conversation_messages (session_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save replaces the stored history for a session with the given messages.
// The replace is atomic; a failure leaves the previous snapshot intact.
func (s *Store) Save(ctx context.Context, sessionID string, msgs []llm.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save %s: begin: %w", sessionID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM conversation_messages WHERE session_id = ?`, sessionID,
	); err != nil {
		return fmt.Errorf("save %s: clear: %w", sessionID, err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for seq, msg := range msgs {
		content := msg.Content
		if s.cipher != nil {
			if content, err = s.cipher.Encrypt(content); err != nil {
				return fmt.Errorf("save %s: encrypt seq %d: %w", sessionID, seq, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_messages (session_id, seq, role, content, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			sessionID, seq, msg.Role, content, now,
		); err != nil {
			return fmt.Errorf("save %s: insert seq %d: %w", sessionID, seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save %s: commit: %w", sessionID, err)
	}
	return nil
}

// Load returns the stored history for a session in insertion order. Returns
// an empty (non-nil) slice when the session has no stored messages.
func (s *Store) Load(ctx context.Context, sessionID string) ([]llm.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM conversation_messages
		 WHERE session_id = ? ORDER BY seq ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", sessionID, err)
	}
	defer rows.Close()

	msgs := []llm.Message{}
	for rows.Next() {
		var msg llm.Message
		if err := rows.Scan(&msg.Role, &msg.Content); err != nil {
			return nil, fmt.Errorf("load %s: scan: %w", sessionID, err)
		}
		if s.cipher != nil {
			if msg.Content, err = s.cipher.Decrypt(msg.Content); err != nil {
				return nil, fmt.Errorf("load %s: decrypt: %w", sessionID, err)
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// Delete removes a session's history. No error is returned if the session
// has no stored messages.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_messages WHERE session_id = ?`, sessionID,
	)
	if err != nil {
		return fmt.Errorf("delete %s: %w", sessionID, err)
	}
	return nil
}

// Sessions returns the ids of all sessions with stored messages, sorted.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT session_id FROM conversation_messages ORDER BY session_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sessions: scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
