package chat

import (
	"context"
	"errors"
	"log"

	"github.com/soluna-labs/talkgate/internal/conversation"
)

// HistoryAppender writes one message to the conversation store.
type HistoryAppender interface {
	Append(ctx context.Context, userID, characterID string, role conversation.Role, content string) error
}

// MemoryWriter records a passage for later similarity search.
type MemoryWriter interface {
	Add(ctx context.Context, text string, metadata map[string]string) error
}

// Persister records the exchange: the user's message followed by the
// assistant's reply, or a short error stub when generation failed.
// Successful replies are also written back to the memory store.
// Store failures are logged and never block delivery.
type Persister struct {
	store  HistoryAppender
	memory MemoryWriter
}

func NewPersister(store HistoryAppender, memory MemoryWriter) *Persister {
	return &Persister{store: store, memory: memory}
}

func (p *Persister) Persist(ctx context.Context, userID, characterID string, result Result) {
	if err := p.store.Append(ctx, userID, characterID, conversation.RoleUser, result.UserMessage); err != nil {
		p.warn("user message", err)
	}

	reply := result.AIResponse
	if !result.IsSuccess {
		reply = "[generation failed]"
		if result.ErrorMessage != "" {
			reply = "[generation failed: " + result.ErrorMessage + "]"
		}
	}
	if err := p.store.Append(ctx, userID, characterID, conversation.RoleAssistant, reply); err != nil {
		p.warn("assistant message", err)
	}

	if p.memory != nil && result.IsSuccess && result.AIResponse != "" {
		meta := map[string]string{"user_id": userID, "character_id": characterID}
		if err := p.memory.Add(ctx, result.AIResponse, meta); err != nil {
			log.Printf("[chat] memory write-back failed: %v", err)
		}
	}
}

func (p *Persister) warn(what string, err error) {
	if errors.Is(err, conversation.ErrContentTooLong) {
		log.Printf("[chat] %s rejected by store: %v", what, err)
		return
	}
	log.Printf("[chat] persist %s failed: %v", what, err)
}
