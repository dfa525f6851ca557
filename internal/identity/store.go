// Package identity stores users and the characters they talk to.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("identity: not found")

type User struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Character is a conversational persona. PersonaPrompt becomes the system
// message for the language model; VoiceName selects a synthesis profile.
type Character struct {
	ID            string
	Name          string
	PersonaPrompt string
	Instructions  string
	VoiceName     string
	CreatedAt     time.Time
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS characters (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		persona_prompt TEXT NOT NULL DEFAULT '',
		instructions TEXT NOT NULL DEFAULT '',
		voice_name TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init identity schema: %w", err)
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, id, name string) error {
	if id == "" {
		return errors.New("identity: empty user id")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO users (id, name, created_at) VALUES (?, ?, ?)`,
		id, name, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) UserExists(ctx context.Context, id string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM users WHERE id = ?`, id)
}

func (s *Store) CreateCharacter(ctx context.Context, c Character) error {
	if c.ID == "" {
		return errors.New("identity: empty character id")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO characters (id, name, persona_prompt, instructions, voice_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.PersonaPrompt, c.Instructions, c.VoiceName,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("create character: %w", err)
	}
	return nil
}

func (s *Store) CharacterExists(ctx context.Context, id string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM characters WHERE id = ?`, id)
}

func (s *Store) GetCharacter(ctx context.Context, id string) (Character, error) {
	var c Character
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, persona_prompt, instructions, voice_name, created_at
		 FROM characters WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.PersonaPrompt, &c.Instructions, &c.VoiceName, &created)
	if err == sql.ErrNoRows {
		return Character{}, ErrNotFound
	}
	if err != nil {
		return Character{}, fmt.Errorf("get character: %w", err)
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return c, nil
}

func (s *Store) ListCharacters(ctx context.Context) ([]Character, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, persona_prompt, instructions, voice_name, created_at
		 FROM characters ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	defer rows.Close()

	var out []Character
	for rows.Next() {
		var c Character
		var created string
		if err := rows.Scan(&c.ID, &c.Name, &c.PersonaPrompt, &c.Instructions, &c.VoiceName, &created); err != nil {
			return nil, fmt.Errorf("scan character: %w", err)
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) exists(ctx context.Context, query, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, query, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("identity lookup: %w", err)
	}
	return true, nil
}
