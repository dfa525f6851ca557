// Package maintenance runs periodic housekeeping: history retention
// trimming and sweeping sessions whose connections have gone away.
package maintenance

import (
	"context"
	"fmt"
	"log"
	"sync"

	rcron "github.com/robfig/cron/v3"

	"github.com/soluna-labs/talkgate/internal/conversation"
	"github.com/soluna-labs/talkgate/internal/registry"
)

type Config struct {
	// Cron expressions with a seconds field.
	TrimSchedule  string
	SweepSchedule string
	// Messages kept per user/character pair.
	RetentionKeep int
}

func DefaultConfig() Config {
	return Config{
		TrimSchedule:  "0 */10 * * * *",
		SweepSchedule: "30 * * * * *",
		RetentionKeep: 200,
	}
}

type Service struct {
	cfg      Config
	history  *conversation.Store
	registry *registry.Registry

	mu   sync.Mutex
	cron *rcron.Cron
}

func NewService(cfg Config, history *conversation.Store, reg *registry.Registry) *Service {
	return &Service{cfg: cfg, history: history, registry: reg}
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("maintenance already started")
	}

	c := rcron.New(rcron.WithSeconds())
	if _, err := c.AddFunc(s.cfg.TrimSchedule, func() { s.trim(ctx) }); err != nil {
		return fmt.Errorf("register trim job: %w", err)
	}
	if _, err := c.AddFunc(s.cfg.SweepSchedule, func() { s.sweep() }); err != nil {
		return fmt.Errorf("register sweep job: %w", err)
	}

	c.Start()
	s.cron = c
	log.Printf("[maintenance] started (trim %q, sweep %q, keep %d)",
		s.cfg.TrimSchedule, s.cfg.SweepSchedule, s.cfg.RetentionKeep)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
	log.Printf("[maintenance] stopped")
}

func (s *Service) trim(ctx context.Context) {
	removed, err := s.history.Trim(ctx, s.cfg.RetentionKeep)
	if err != nil {
		log.Printf("[maintenance] history trim failed: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("[maintenance] trimmed %d messages beyond retention window", removed)
	}
}

// sweep drops registry entries whose connection reports closed. The
// registry never closes handles itself, so a dead socket lingers until
// this pass removes it.
func (s *Service) sweep() {
	swept := 0
	for _, entry := range s.registry.GetAll() {
		// Compare-and-delete so a session that reconnected since the
		// snapshot keeps its live entry.
		if !entry.Conn().Open() && s.registry.UnregisterConn(entry.SessionID, entry.Conn()) {
			swept++
		}
	}
	if swept > 0 {
		log.Printf("[maintenance] swept %d dead sessions, %d remain", swept, s.registry.Count())
	}
}
