package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps memory passages with their embeddings in a local
// SQLite database and ranks matches by cosine similarity.
type SQLiteStore struct {
	db       *sql.DB
	embedder Embedder
	mu       sync.Mutex
}

func NewSQLiteStore(dbPath string, embedder Embedder) (*SQLiteStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("sqlite memory: nil embedder")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &SQLiteStore{db: db, embedder: embedder}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		`CREATE TABLE IF NOT EXISTS passages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			text TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			embedding BLOB NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_passages_created ON passages(created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init memory schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Add(ctx context.Context, text string, metadata map[string]string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fmt.Errorf("add memory: empty text")
	}

	vector, err := s.embedder.Embed(ctx, trimmed)
	if err != nil {
		return fmt.Errorf("add memory: %w", err)
	}
	blob, err := encodeVector(vector)
	if err != nil {
		return fmt.Errorf("add memory: %w", err)
	}

	meta := "{}"
	if len(metadata) > 0 {
		encoded, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("add memory: marshal metadata: %w", err)
		}
		meta = string(encoded)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO passages (text, metadata, embedding) VALUES (?, ?, ?)`,
		trimmed, meta, blob,
	); err != nil {
		return fmt.Errorf("add memory: insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	if topK <= 0 {
		return nil, nil
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search memory: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT text, embedding FROM passages`)
	if err != nil {
		return nil, fmt.Errorf("search memory: query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var text string
		var blob []byte
		if err := rows.Scan(&text, &blob); err != nil {
			return nil, fmt.Errorf("search memory: scan: %w", err)
		}

		vector, err := decodeVector(blob)
		if err != nil {
			// Skip unreadable rows rather than failing the lookup.
			continue
		}
		score, err := cosineSimilarity(queryVec, vector)
		if err != nil {
			continue
		}
		results = append(results, Result{Text: text, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search memory: iterate: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
