package chat

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/soluna-labs/talkgate/internal/conversation"
	"github.com/soluna-labs/talkgate/internal/identity"
	"github.com/soluna-labs/talkgate/internal/memory"
)

// MemorySearcher finds passages relevant to the user's message.
type MemorySearcher interface {
	Search(ctx context.Context, query string, topK int) ([]memory.Result, error)
}

// HistoryReader returns recent messages in chronological order.
type HistoryReader interface {
	GetRecent(ctx context.Context, userID, characterID string, count int) ([]conversation.Message, error)
}

// CharacterSource loads the character a request is addressed to.
type CharacterSource interface {
	GetCharacter(ctx context.Context, id string) (identity.Character, error)
}

// Sampling carries the model parameters applied to every generation.
type Sampling struct {
	MaxTokens   int
	Temperature float64
	Model       string
}

// Preprocessor assembles the Context for one request. The memory,
// history, and instruction lookups run concurrently; a failure in any
// one degrades its field to empty instead of failing the request.
type Preprocessor struct {
	memory     MemorySearcher
	history    HistoryReader
	characters CharacterSource

	topK        int
	recentCount int
	sampling    Sampling
}

func NewPreprocessor(mem MemorySearcher, hist HistoryReader, chars CharacterSource, topK, recentCount int, sampling Sampling) *Preprocessor {
	if topK <= 0 {
		topK = 5
	}
	if recentCount <= 0 {
		recentCount = 10
	}
	return &Preprocessor{
		memory:      mem,
		history:     hist,
		characters:  chars,
		topK:        topK,
		recentCount: recentCount,
		sampling:    sampling,
	}
}

// Assemble gathers prompt material for the request. It always returns a
// usable Context; voiceName is the character's synthesis profile name,
// empty when the character could not be loaded.
func (p *Preprocessor) Assemble(ctx context.Context, req Request) (Context, string) {
	var (
		wg sync.WaitGroup

		memoryLines  []string
		historyLines []string
		system       string
		instructions string
		voiceName    string
	)

	wg.Add(3)

	go func() {
		defer wg.Done()
		memoryLines = p.searchMemory(ctx, req.Message)
	}()

	go func() {
		defer wg.Done()
		historyLines = p.readHistory(ctx, req.UserID, req.CharacterID)
	}()

	go func() {
		defer wg.Done()
		system, instructions, voiceName = p.loadInstructions(ctx, req)
	}()

	wg.Wait()

	return Context{
		SystemMessage:       system,
		UserMessage:         req.Message,
		Instructions:        instructions,
		MemoryContext:       memoryLines,
		ConversationHistory: historyLines,
		MaxTokens:           p.sampling.MaxTokens,
		Temperature:         p.sampling.Temperature,
		Model:               p.sampling.Model,
	}, voiceName
}

func (p *Preprocessor) searchMemory(ctx context.Context, query string) []string {
	if p.memory == nil {
		return nil
	}
	results, err := p.memory.Search(ctx, query, p.topK)
	if err != nil {
		log.Printf("[chat] memory search degraded: %v", err)
		return nil
	}
	// Store-supplied relevance order is preserved as-is.
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, r.Text)
	}
	return lines
}

func (p *Preprocessor) readHistory(ctx context.Context, userID, characterID string) []string {
	msgs, err := p.history.GetRecent(ctx, userID, characterID, p.recentCount)
	if err != nil {
		log.Printf("[chat] history read degraded: %v", err)
		return nil
	}
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}
	return lines
}

func (p *Preprocessor) loadInstructions(ctx context.Context, req Request) (system, instructions, voiceName string) {
	char, err := p.characters.GetCharacter(ctx, req.CharacterID)
	if err != nil {
		log.Printf("[chat] character load degraded: %v", err)
		if req.Action != "" {
			return "", req.Action, ""
		}
		return "", "", ""
	}
	instructions = char.Instructions
	if req.Action != "" {
		// A per-request override replaces the baseline, never appends.
		instructions = req.Action
	}
	return char.PersonaPrompt, instructions, char.VoiceName
}
