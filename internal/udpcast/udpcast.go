// Package udpcast pushes result payloads to client-registered UDP
// targets. Delivery is fire-and-forget with no acknowledgement.
package udpcast

import (
	"fmt"
	"log"
	"net"
	"sync"
)

// Caster maps session ids to datagram targets.
type Caster struct {
	mu      sync.RWMutex
	targets map[string]*net.UDPAddr
}

func New() *Caster {
	return &Caster{targets: make(map[string]*net.UDPAddr)}
}

// RegisterTarget binds a session to an ip:port pair. A later
// registration for the same session replaces the earlier one.
func (c *Caster) RegisterTarget(sessionID, hostPort string) error {
	if sessionID == "" {
		return fmt.Errorf("udpcast: empty session id")
	}
	addr, err := net.ResolveUDPAddr("udp", hostPort)
	if err != nil {
		return fmt.Errorf("resolve udp target %q: %w", hostPort, err)
	}
	c.mu.Lock()
	c.targets[sessionID] = addr
	c.mu.Unlock()
	return nil
}

func (c *Caster) UnregisterTarget(sessionID string) {
	c.mu.Lock()
	delete(c.targets, sessionID)
	c.mu.Unlock()
}

// Push sends one datagram to the session's target, if any. It reports
// whether the payload was handed to the network; there is no delivery
// guarantee beyond that.
func (c *Caster) Push(sessionID string, payload []byte) bool {
	c.mu.RLock()
	addr, ok := c.targets[sessionID]
	c.mu.RUnlock()
	if !ok {
		return false
	}

	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		log.Printf("[udpcast] dial %s: %v", addr, err)
		return false
	}
	defer conn.Close()

	if _, err := conn.Write(payload); err != nil {
		log.Printf("[udpcast] write to %s: %v", addr, err)
		return false
	}
	return true
}
