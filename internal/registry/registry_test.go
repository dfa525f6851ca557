package registry

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

type fakeConn struct {
	mu     sync.Mutex
	open   bool
	texts  []string
	frames [][]byte
	err    error
	label  string
}

func newFakeConn(label string) *fakeConn {
	return &fakeConn{open: true, label: label}
}

func (c *fakeConn) SendText(ctx context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.texts = append(c.texts, text)
	return nil
}

func (c *fakeConn) SendBinary(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	c.frames = append(c.frames, copied)
	return nil
}

func (c *fakeConn) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeConn) sentTexts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.texts...)
}

func TestRegisterReplacesEntry(t *testing.T) {
	r := New()
	a := newFakeConn("a")
	b := newFakeConn("b")

	r.Register("s1", a, "u1")
	r.Register("s1", b, "u1")

	entry, ok := r.Get("s1")
	if !ok {
		t.Fatal("expected entry for s1")
	}
	if entry.Conn() != b {
		t.Error("expected later registration to win")
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestUnregisterMissingIsNoop(t *testing.T) {
	r := New()
	r.Unregister("nope")

	r.Register("s1", newFakeConn("a"), "")
	r.Unregister("s1")
	if _, ok := r.Get("s1"); ok {
		t.Error("expected s1 removed")
	}
}

func TestUnregisterConnOnlyRemovesOwnEntry(t *testing.T) {
	r := New()
	a := newFakeConn("a")
	b := newFakeConn("b")

	r.Register("s1", a, "u1")
	r.Register("s1", b, "u1")

	// The replaced connection's cleanup must not evict the live entry.
	if r.UnregisterConn("s1", a) {
		t.Error("stale conn must not remove the entry")
	}
	entry, ok := r.Get("s1")
	if !ok {
		t.Fatal("live entry was removed by the stale conn")
	}
	if entry.Conn() != b {
		t.Error("expected the later registration to survive")
	}

	if !r.UnregisterConn("s1", b) {
		t.Error("owning conn must remove the entry")
	}
	if _, ok := r.Get("s1"); ok {
		t.Error("expected s1 removed")
	}

	if r.UnregisterConn("ghost", a) {
		t.Error("unknown session must report false")
	}
}

func TestSendTextToUnknownSession(t *testing.T) {
	r := New()
	if delivered := r.SendText(context.Background(), "ghost", "hi"); delivered {
		t.Error("expected not delivered for unknown session")
	}
}

func TestSendTextToClosedConn(t *testing.T) {
	r := New()
	conn := newFakeConn("a")
	conn.open = false
	r.Register("s1", conn, "")

	if delivered := r.SendText(context.Background(), "s1", "hi"); delivered {
		t.Error("expected not delivered for closed conn")
	}
	if len(conn.sentTexts()) != 0 {
		t.Error("expected no writes to closed conn")
	}
}

func TestSendTextDelivered(t *testing.T) {
	r := New()
	conn := newFakeConn("a")
	r.Register("s1", conn, "")

	if delivered := r.SendText(context.Background(), "s1", "hello"); !delivered {
		t.Fatal("expected delivery")
	}
	got := conn.sentTexts()
	if len(got) != 1 || got[0] != "hello" {
		t.Errorf("sent texts = %v, want [hello]", got)
	}
}

func TestSendBinaryDelivered(t *testing.T) {
	r := New()
	conn := newFakeConn("a")
	r.Register("s1", conn, "")

	if delivered := r.SendBinary(context.Background(), "s1", []byte{1, 2, 3}); !delivered {
		t.Fatal("expected delivery")
	}
	if len(conn.frames) != 1 || len(conn.frames[0]) != 3 {
		t.Errorf("frames = %v, want one 3-byte frame", conn.frames)
	}
}

func TestSendErrorReportsNotDelivered(t *testing.T) {
	r := New()
	conn := newFakeConn("a")
	conn.err = fmt.Errorf("broken pipe")
	r.Register("s1", conn, "")

	if delivered := r.SendText(context.Background(), "s1", "hi"); delivered {
		t.Error("expected not delivered on write error")
	}
}

func TestSessionsByUser(t *testing.T) {
	r := New()
	r.Register("s1", newFakeConn("a"), "u1")
	r.Register("s2", newFakeConn("b"), "u1")
	r.Register("s3", newFakeConn("c"), "u2")

	ids := r.SessionsByUser("u1")
	if len(ids) != 2 {
		t.Errorf("SessionsByUser(u1) = %v, want 2 ids", ids)
	}
	if got := r.SessionsByUser(""); got != nil {
		t.Errorf("SessionsByUser(\"\") = %v, want nil", got)
	}
}

func TestConcurrentRegisterAndSend(t *testing.T) {
	r := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i%10)
			r.Register(id, newFakeConn(id), "")
			r.SendText(context.Background(), id, "ping")
			if i%3 == 0 {
				r.Unregister(id)
			}
		}(i)
	}
	wg.Wait()

	if r.Count() > 10 {
		t.Errorf("Count() = %d, want at most 10", r.Count())
	}
}
