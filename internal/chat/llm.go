package chat

import (
	"context"
	"log"
	"time"

	"github.com/soluna-labs/talkgate/internal/llm"
)

// Generator is the external language-model collaborator.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (llm.Response, error)
}

// Generation is the outcome of the model stage. Failures are values
// here, never errors crossing the component boundary.
type Generation struct {
	Text         string
	TokensUsed   int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
}

// LLMHandler calls the model exactly once per request. Transport errors,
// timeouts, and non-success responses all collapse into Success=false.
type LLMHandler struct {
	client Generator
}

func NewLLMHandler(client Generator) *LLMHandler {
	return &LLMHandler{client: client}
}

func (h *LLMHandler) Generate(ctx context.Context, c Context) Generation {
	start := time.Now()
	resp, err := h.client.Generate(ctx, llm.Request{
		SystemMessage:       c.SystemMessage,
		UserMessage:         c.UserMessage,
		Instructions:        c.Instructions,
		MemoryContext:       c.MemoryContext,
		ConversationHistory: c.ConversationHistory,
		MaxTokens:           c.MaxTokens,
		Temperature:         c.Temperature,
		Model:               c.Model,
	})
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		log.Printf("[chat] generation failed after %dms: %v", elapsed, err)
		return Generation{
			LatencyMs:    elapsed,
			ErrorMessage: "language model request failed",
		}
	}
	return Generation{
		Text:       resp.Text,
		TokensUsed: resp.TokensUsed,
		LatencyMs:  elapsed,
		Success:    true,
	}
}
