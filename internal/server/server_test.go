package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/soluna-labs/talkgate/internal/chat"
	"github.com/soluna-labs/talkgate/internal/registry"
	"github.com/soluna-labs/talkgate/internal/udpcast"
	"github.com/soluna-labs/talkgate/internal/wire"
)

type fakeDispatcher struct {
	mu   sync.Mutex
	reqs []chat.Request
	done chan struct{}
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{done: make(chan struct{}, 16)}
}

func (f *fakeDispatcher) Handle(_ context.Context, req chat.Request) chat.Result {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	f.done <- struct{}{}
	return chat.Result{SessionID: req.SessionID, IsSuccess: true}
}

func (f *fakeDispatcher) requests() []chat.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chat.Request(nil), f.reqs...)
}

func startServer(t *testing.T, port int) (*Server, *registry.Registry, *fakeDispatcher) {
	t.Helper()
	reg := registry.New()
	dispatch := newFakeDispatcher()
	srv := New(fmt.Sprintf("127.0.0.1:%d", port), reg, dispatch, udpcast.New())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(srv.Stop)
	time.Sleep(100 * time.Millisecond)
	return srv, reg, dispatch
}

func readHandshake(t *testing.T, ctx context.Context, conn *websocket.Conn) string {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read handshake: %v", err)
	}
	var frame wire.SessionIDFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("decode handshake: %v", err)
	}
	if frame.Type != wire.TypeSessionID || frame.SessionID == "" {
		t.Fatalf("bad handshake frame: %+v", frame)
	}
	return frame.SessionID
}

func TestHandshakeGeneratesSessionID(t *testing.T) {
	_, reg, _ := startServer(t, 19961)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://127.0.0.1:19961/ws", nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	defer conn.CloseNow()

	sessionID := readHandshake(t, ctx, conn)
	if !strings.HasPrefix(sessionID, "session_") {
		t.Errorf("generated id = %q, want session_ prefix", sessionID)
	}

	time.Sleep(50 * time.Millisecond)
	if _, ok := reg.Get(sessionID); !ok {
		t.Fatal("session not registered after handshake")
	}
}

func TestHandshakeHonorsClientSessionID(t *testing.T) {
	_, reg, _ := startServer(t, 19962)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://127.0.0.1:19962/ws?sessionId=mine&userId=u1", nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	defer conn.CloseNow()

	if got := readHandshake(t, ctx, conn); got != "mine" {
		t.Fatalf("session id = %q, want mine", got)
	}

	time.Sleep(50 * time.Millisecond)
	entry, ok := reg.Get("mine")
	if !ok {
		t.Fatal("session not registered")
	}
	if entry.UserID != "u1" {
		t.Errorf("user id = %q, want u1", entry.UserID)
	}
}

func TestChatFrameDispatched(t *testing.T) {
	_, _, dispatch := startServer(t, 19963)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://127.0.0.1:19963/ws?sessionId=s1", nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	defer conn.CloseNow()
	readHandshake(t, ctx, conn)

	frame := `{"type":"chat","data":{"session_id":"spoofed","user_id":"u1","character_id":"c1","message":"hello"}}`
	if err := conn.Write(ctx, websocket.MessageText, []byte(frame)); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-dispatch.done:
	case <-time.After(2 * time.Second):
		t.Fatal("chat request never dispatched")
	}

	reqs := dispatch.requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	if reqs[0].SessionID != "s1" {
		t.Errorf("session id must come from the transport, got %q", reqs[0].SessionID)
	}
	if reqs[0].Message != "hello" || reqs[0].RequestedAt.IsZero() {
		t.Errorf("unexpected request: %+v", reqs[0])
	}
}

func TestMalformedFramesIgnored(t *testing.T) {
	_, reg, dispatch := startServer(t, 19964)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://127.0.0.1:19964/ws?sessionId=s1", nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	defer conn.CloseNow()
	readHandshake(t, ctx, conn)

	for _, bad := range []string{"not json", `{"type":"mystery"}`, `{"type":"chat","data":42}`} {
		if err := conn.Write(ctx, websocket.MessageText, []byte(bad)); err != nil {
			t.Fatalf("write %q: %v", bad, err)
		}
	}

	time.Sleep(150 * time.Millisecond)
	if got := dispatch.requests(); len(got) != 0 {
		t.Fatalf("malformed frames dispatched: %+v", got)
	}
	if _, ok := reg.Get("s1"); !ok {
		t.Fatal("connection must survive malformed frames")
	}
}

func TestDisconnectUnregisters(t *testing.T) {
	_, reg, _ := startServer(t, 19965)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://127.0.0.1:19965/ws?sessionId=s1", nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	readHandshake(t, ctx, conn)

	conn.CloseNow()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := reg.Get("s1"); !ok {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("session still registered after disconnect")
}

func TestReconnectSurvivesOldConnCleanup(t *testing.T) {
	_, reg, _ := startServer(t, 19967)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	first, _, err := websocket.Dial(ctx, "ws://127.0.0.1:19967/ws?sessionId=s1", nil)
	if err != nil {
		t.Fatalf("first dial: %v", err)
	}
	readHandshake(t, ctx, first)

	second, _, err := websocket.Dial(ctx, "ws://127.0.0.1:19967/ws?sessionId=s1", nil)
	if err != nil {
		t.Fatalf("second dial: %v", err)
	}
	defer second.CloseNow()
	readHandshake(t, ctx, second)

	// Dropping the replaced connection must not evict the live one.
	first.CloseNow()
	time.Sleep(200 * time.Millisecond)

	entry, ok := reg.Get("s1")
	if !ok {
		t.Fatal("reconnected session was unregistered by the old connection's cleanup")
	}
	if !entry.Conn().Open() {
		t.Fatal("surviving entry must be the open reconnected handle")
	}
	if !reg.SendText(context.Background(), "s1", "still here") {
		t.Fatal("send to reconnected session must succeed")
	}
}

func TestHealthEndpoint(t *testing.T) {
	startServer(t, 19966)

	resp, err := http.Get("http://127.0.0.1:19966/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestNewSessionIDShape(t *testing.T) {
	a, b := NewSessionID(), NewSessionID()
	if a == b {
		t.Fatal("ids must be unique")
	}
	parts := strings.Split(a, "_")
	if len(parts) != 3 || parts[0] != "session" || len(parts[2]) != 8 {
		t.Fatalf("unexpected id shape: %q", a)
	}
}
