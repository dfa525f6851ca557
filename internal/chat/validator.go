package chat

import (
	"context"
	"fmt"
	"log"
)

// SessionLookup answers whether a session currently has a live connection.
type SessionLookup interface {
	SessionExists(id string) bool
}

// IdentityLookup resolves user and character identifiers.
type IdentityLookup interface {
	UserExists(ctx context.Context, id string) (bool, error)
	CharacterExists(ctx context.Context, id string) (bool, error)
}

// Validator runs the identifier checks before any expensive stage. Checks
// short-circuit on the first failure and perform no writes.
type Validator struct {
	sessions SessionLookup
	idents   IdentityLookup
}

func NewValidator(sessions SessionLookup, idents IdentityLookup) *Validator {
	return &Validator{sessions: sessions, idents: idents}
}

func (v *Validator) Validate(ctx context.Context, req Request) ValidationResult {
	if req.SessionID != "" && !v.sessions.SessionExists(req.SessionID) {
		return ValidationResult{
			ErrorCode: CodeInvalidSession,
			Message:   fmt.Sprintf("unknown session %q", req.SessionID),
		}
	}

	ok, err := v.idents.UserExists(ctx, req.UserID)
	if err != nil {
		log.Printf("[chat] user lookup failed: %v", err)
		return ValidationResult{ErrorCode: CodeInvalidUser, Message: "user lookup failed"}
	}
	if !ok {
		return ValidationResult{
			ErrorCode: CodeInvalidUser,
			Message:   fmt.Sprintf("unknown user %q", req.UserID),
		}
	}

	ok, err = v.idents.CharacterExists(ctx, req.CharacterID)
	if err != nil {
		log.Printf("[chat] character lookup failed: %v", err)
		return ValidationResult{ErrorCode: CodeInvalidCharacter, Message: "character lookup failed"}
	}
	if !ok {
		return ValidationResult{
			ErrorCode: CodeInvalidCharacter,
			Message:   fmt.Sprintf("unknown character %q", req.CharacterID),
		}
	}

	return ValidationResult{OK: true}
}
