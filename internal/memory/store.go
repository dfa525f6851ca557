package memory

import "context"

// Result is one matched passage from the memory store, in
// store-supplied relevance order.
type Result struct {
	Text  string
	Score float64
}

// Store is the long-term memory collaborator. Search returns up to
// topK passages most relevant to the query; Add records a new passage
// with optional metadata.
type Store interface {
	Search(ctx context.Context, query string, topK int) ([]Result, error)
	Add(ctx context.Context, text string, metadata map[string]string) error
	Close() error
}
