package registry

import (
	"context"
	"log"
	"sync"
	"time"
)

// Conn is a live outbound transport handle for one client.
// Implementations must report Open() false once the underlying
// transport can no longer accept frames.
type Conn interface {
	SendText(ctx context.Context, text string) error
	SendBinary(ctx context.Context, data []byte) error
	Open() bool
}

// Entry is one registered connection. Writes to the handle are
// serialized through sendMu so concurrent sends to the same session
// never interleave frames; sends to different sessions share nothing.
type Entry struct {
	SessionID   string
	UserID      string
	ConnectedAt time.Time

	conn   Conn
	sendMu sync.Mutex
}

// Conn returns the transport handle for inspection.
func (e *Entry) Conn() Conn {
	return e.conn
}

// Registry maps session ids to live connections. All methods are safe
// for concurrent use. A second Register for the same session id
// replaces the previous entry; the replaced handle is not closed here,
// that stays with whoever accepted the connection.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

func New() *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
	}
}

// Register inserts or replaces the entry for sessionID. userID may be
// empty for anonymous sessions.
func (r *Registry) Register(sessionID string, conn Conn, userID string) {
	entry := &Entry{
		SessionID:   sessionID,
		UserID:      userID,
		ConnectedAt: time.Now(),
		conn:        conn,
	}

	r.mu.Lock()
	r.entries[sessionID] = entry
	r.mu.Unlock()

	log.Printf("[registry] registered session %s (user=%q)", sessionID, userID)
}

// Unregister removes the entry for sessionID if present.
func (r *Registry) Unregister(sessionID string) {
	r.mu.Lock()
	_, ok := r.entries[sessionID]
	if ok {
		delete(r.entries, sessionID)
	}
	r.mu.Unlock()

	if ok {
		log.Printf("[registry] unregistered session %s", sessionID)
	}
}

// UnregisterConn removes the entry for sessionID only while it still
// holds conn, and reports whether it did. After a same-session
// reconnect the replaced connection's cleanup is a no-op here, leaving
// the live entry registered.
func (r *Registry) UnregisterConn(sessionID string, conn Conn) bool {
	r.mu.Lock()
	entry, ok := r.entries[sessionID]
	removed := ok && entry.conn == conn
	if removed {
		delete(r.entries, sessionID)
	}
	r.mu.Unlock()

	if removed {
		log.Printf("[registry] unregistered session %s", sessionID)
	}
	return removed
}

// Get returns the entry for sessionID.
func (r *Registry) Get(sessionID string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[sessionID]
	return entry, ok
}

// GetAll returns a snapshot of all registered entries.
func (r *Registry) GetAll() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		entries = append(entries, entry)
	}
	return entries
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// SessionsByUser returns the session ids currently registered for a user.
func (r *Registry) SessionsByUser(userID string) []string {
	if userID == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, entry := range r.entries {
		if entry.UserID == userID {
			ids = append(ids, id)
		}
	}
	return ids
}

// SendText delivers a text frame to the session. A missing session or a
// closed handle is a normal outcome (client went away) and reports
// false without error.
func (r *Registry) SendText(ctx context.Context, sessionID, text string) bool {
	return r.send(ctx, sessionID, func(ctx context.Context, conn Conn) error {
		return conn.SendText(ctx, text)
	})
}

// SendBinary delivers a binary frame to the session, with the same
// best-effort semantics as SendText.
func (r *Registry) SendBinary(ctx context.Context, sessionID string, data []byte) bool {
	return r.send(ctx, sessionID, func(ctx context.Context, conn Conn) error {
		return conn.SendBinary(ctx, data)
	})
}

func (r *Registry) send(ctx context.Context, sessionID string, write func(context.Context, Conn) error) bool {
	r.mu.RLock()
	entry, ok := r.entries[sessionID]
	r.mu.RUnlock()

	if !ok {
		log.Printf("[registry] send skipped, session %s not registered", sessionID)
		return false
	}
	if !entry.conn.Open() {
		log.Printf("[registry] send skipped, session %s not open", sessionID)
		return false
	}

	entry.sendMu.Lock()
	err := write(ctx, entry.conn)
	entry.sendMu.Unlock()

	if err != nil {
		log.Printf("[registry] send to session %s failed: %v", sessionID, err)
		return false
	}
	return true
}
