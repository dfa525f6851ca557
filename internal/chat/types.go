// Package chat implements the request pipeline: validate, gather context,
// generate a reply, optionally synthesize speech, then persist and deliver.
package chat

import (
	"time"

	"github.com/soluna-labs/talkgate/internal/voice"
)

// Validation error codes surfaced to clients.
const (
	CodeInvalidSession   = "INVALID_SESSION_ID"
	CodeInvalidUser      = "INVALID_USER_ID"
	CodeInvalidCharacter = "INVALID_CHARACTER_ID"
	CodeGenerationFailed = "GENERATION_FAILED"
	CodeInternal         = "INTERNAL_ERROR"
)

// Request is one inbound chat message. Fields are fixed once decoded.
type Request struct {
	SessionID   string          `json:"session_id"`
	UserID      string          `json:"user_id"`
	CharacterID string          `json:"character_id"`
	Message     string          `json:"message"`
	Action      string          `json:"action,omitempty"`
	UseTTS      bool            `json:"use_tts"`
	Language    string          `json:"language,omitempty"`
	Style       string          `json:"style,omitempty"`
	Voice       *voice.Settings `json:"voice_settings,omitempty"`
	RequestedAt time.Time       `json:"requested_at"`
}

// Context is the per-request prompt material assembled by the
// preprocessors. Each in-flight request owns its own copy.
type Context struct {
	SystemMessage       string
	UserMessage         string
	Instructions        string
	MemoryContext       []string
	ConversationHistory []string
	MaxTokens           int
	Temperature         float64
	Model               string
}

// AudioPayload carries synthesized speech alongside the text reply.
type AudioPayload struct {
	Data            []byte
	ContentType     string
	DurationSeconds float64
}

// Result is the single outcome produced for every accepted request.
type Result struct {
	SessionID    string        `json:"session_id"`
	UserMessage  string        `json:"user_message"`
	AIResponse   string        `json:"ai_response"`
	IsSuccess    bool          `json:"is_success"`
	TokensUsed   int           `json:"tokens_used"`
	ErrorCode    string        `json:"error_code,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Audio        *AudioPayload `json:"-"`
}

// ValidationResult reports the first failed identifier check, if any.
type ValidationResult struct {
	OK        bool
	ErrorCode string
	Message   string
}
