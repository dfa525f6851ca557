// Package server accepts websocket connections, hands each one a
// session id, and feeds inbound chat frames into the orchestrator.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/soluna-labs/talkgate/internal/chat"
	"github.com/soluna-labs/talkgate/internal/registry"
	"github.com/soluna-labs/talkgate/internal/udpcast"
	"github.com/soluna-labs/talkgate/internal/wire"
)

const requestTimeout = 90 * time.Second

// Dispatcher runs one chat request through the pipeline.
type Dispatcher interface {
	Handle(ctx context.Context, req chat.Request) chat.Result
}

type Server struct {
	addr     string
	registry *registry.Registry
	dispatch Dispatcher
	caster   *udpcast.Caster
	server   *http.Server
}

func New(addr string, reg *registry.Registry, dispatch Dispatcher, caster *udpcast.Caster) *Server {
	return &Server{addr: addr, registry: reg, dispatch: dispatch, caster: caster}
}

func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)

	s.server = &http.Server{Addr: s.addr, Handler: mux}

	go func() {
		log.Printf("[server] listening on %s", s.addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[server] error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","sessions":%d}`, s.registry.Count())
}

// wsConn adapts a websocket connection to the registry's transport
// interface. Open flips to false the moment a read or write fails.
type wsConn struct {
	conn   *websocket.Conn
	closed atomic.Bool
}

func (c *wsConn) SendText(ctx context.Context, text string) error {
	err := c.conn.Write(ctx, websocket.MessageText, []byte(text))
	if err != nil {
		c.closed.Store(true)
	}
	return err
}

func (c *wsConn) SendBinary(ctx context.Context, data []byte) error {
	err := c.conn.Write(ctx, websocket.MessageBinary, data)
	if err != nil {
		c.closed.Store(true)
	}
	return err
}

func (c *wsConn) Open() bool { return !c.closed.Load() }

// inboundFrame defers payload decoding until the type is known.
type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type udpTarget struct {
	HostPort string `json:"host_port"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Clients connect from native apps and arbitrary origins;
		// auth happens at the request level, not via Origin.
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("[server] websocket accept error: %v", err)
		return
	}

	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	userID := r.URL.Query().Get("userId")

	handle := &wsConn{conn: conn}

	handshake, err := wire.EncodeSessionID(sessionID)
	if err != nil {
		log.Printf("[server] handshake encode error: %v", err)
		conn.CloseNow()
		return
	}
	if err := handle.SendText(r.Context(), string(handshake)); err != nil {
		log.Printf("[server] handshake send error: %v", err)
		conn.CloseNow()
		return
	}

	s.registry.Register(sessionID, handle, userID)
	log.Printf("[server] session connected: %s", sessionID)

	defer func() {
		handle.closed.Store(true)
		// Compare-and-delete: a same-session reconnect replaces this
		// entry, and the replaced connection must not remove it.
		if s.registry.UnregisterConn(sessionID, handle) && s.caster != nil {
			s.caster.UnregisterTarget(sessionID)
		}
		conn.CloseNow()
		log.Printf("[server] session disconnected: %s", sessionID)
	}()

	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}
		s.handleFrame(r.Context(), sessionID, data)
	}
}

func (s *Server) handleFrame(ctx context.Context, sessionID string, data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Printf("[server] session %s: malformed frame: %v", sessionID, err)
		return
	}

	switch frame.Type {
	case wire.TypeChat:
		var req chat.Request
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			log.Printf("[server] session %s: malformed chat request: %v", sessionID, err)
			return
		}
		// The transport is authoritative about which session the
		// request arrived on.
		req.SessionID = sessionID
		if req.RequestedAt.IsZero() {
			req.RequestedAt = time.Now().UTC()
		}
		// Outlive the read loop's context so persistence is not cut
		// short by a disconnect mid-pipeline.
		go func() {
			reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), requestTimeout)
			defer cancel()
			s.dispatch.Handle(reqCtx, req)
		}()

	case "register_udp":
		if s.caster == nil {
			return
		}
		var target udpTarget
		if err := json.Unmarshal(frame.Data, &target); err != nil {
			log.Printf("[server] session %s: malformed udp target: %v", sessionID, err)
			return
		}
		if err := s.caster.RegisterTarget(sessionID, target.HostPort); err != nil {
			log.Printf("[server] session %s: %v", sessionID, err)
			return
		}
		log.Printf("[server] session %s: udp target %s", sessionID, target.HostPort)

	default:
		log.Printf("[server] session %s: unknown frame type %q", sessionID, frame.Type)
	}
}

// NewSessionID builds a server-generated session identifier.
func NewSessionID() string {
	short := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("session_%d_%s", time.Now().UnixNano(), short)
}
