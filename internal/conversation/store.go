// Package conversation persists chat history per user/character pair.
package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ErrContentTooLong is returned by Append when the message body exceeds
// the store's configured limit.
var ErrContentTooLong = errors.New("conversation: content too long")

type Message struct {
	ID          int64
	UserID      string
	CharacterID string
	Role        Role
	Content     string
	CreatedAt   time.Time
}

// Store keeps conversation messages in SQLite. Soft-deleted rows stay in
// the table but never surface through reads.
type Store struct {
	db         *sql.DB
	maxContent int
}

func NewStore(db *sql.DB, maxContent int) (*Store, error) {
	if maxContent <= 0 {
		maxContent = 4000
	}
	s := &Store{db: db, maxContent: maxContent}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		character_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		deleted INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(user_id, character_id, created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init conversation schema: %w", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, userID, characterID string, role Role, content string) error {
	if content == "" {
		return errors.New("conversation: empty content")
	}
	if len(content) > s.maxContent {
		return ErrContentTooLong
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (user_id, character_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		userID, characterID, string(role), content, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// GetRecent returns the newest count messages for the pair in
// chronological order. Ties on timestamp fall back to insertion order.
func (s *Store) GetRecent(ctx context.Context, userID, characterID string, count int) ([]Message, error) {
	if count <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, character_id, role, content, created_at
		 FROM messages
		 WHERE user_id = ? AND character_id = ? AND deleted = 0
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		userID, characterID, count)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var role, created string
		if err := rows.Scan(&m.ID, &m.UserID, &m.CharacterID, &role, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = Role(role)
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	// Reverse newest-first into chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *Store) Count(ctx context.Context, userID, characterID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE user_id = ? AND character_id = ? AND deleted = 0`,
		userID, characterID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

// Delete soft-deletes a single message.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE messages SET deleted = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete message: id %d not found", id)
	}
	return nil
}

// Trim hard-deletes everything beyond the newest keep messages for each
// user/character pair. Soft-deleted rows count against the cap so the
// table cannot grow without bound.
func (s *Store) Trim(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE id NOT IN (
			SELECT id FROM messages m
			WHERE (
				SELECT COUNT(*) FROM messages newer
				WHERE newer.user_id = m.user_id
				  AND newer.character_id = m.character_id
				  AND (newer.created_at > m.created_at
				       OR (newer.created_at = m.created_at AND newer.id > m.id))
			) < ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("trim messages: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
