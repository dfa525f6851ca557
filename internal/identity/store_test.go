package identity

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/soluna-labs/talkgate/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "talkgate.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestUserLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok, err := s.UserExists(ctx, "u1")
	if err != nil {
		t.Fatalf("user exists: %v", err)
	}
	if ok {
		t.Fatal("user should not exist yet")
	}

	if err := s.CreateUser(ctx, "u1", "Alice"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	ok, _ = s.UserExists(ctx, "u1")
	if !ok {
		t.Fatal("user should exist after create")
	}
}

func TestCreateUserEmptyID(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateUser(context.Background(), "", "nobody"); err == nil {
		t.Fatal("expected error for empty user id")
	}
}

func TestCharacterRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := Character{
		ID:            "c1",
		Name:          "Hyewon",
		PersonaPrompt: "You are a cheerful companion.",
		Instructions:  "Keep replies short.",
		VoiceName:     "hyewon",
	}
	if err := s.CreateCharacter(ctx, want); err != nil {
		t.Fatalf("create character: %v", err)
	}

	got, err := s.GetCharacter(ctx, "c1")
	if err != nil {
		t.Fatalf("get character: %v", err)
	}
	if got.Name != want.Name || got.PersonaPrompt != want.PersonaPrompt ||
		got.Instructions != want.Instructions || got.VoiceName != want.VoiceName {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	ok, _ := s.CharacterExists(ctx, "c1")
	if !ok {
		t.Fatal("character should exist")
	}
}

func TestGetCharacterNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetCharacter(context.Background(), "missing")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateCharacterReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.CreateCharacter(ctx, Character{ID: "c1", Name: "Old"})
	_ = s.CreateCharacter(ctx, Character{ID: "c1", Name: "New", VoiceName: "miya"})

	got, err := s.GetCharacter(ctx, "c1")
	if err != nil {
		t.Fatalf("get character: %v", err)
	}
	if got.Name != "New" || got.VoiceName != "miya" {
		t.Fatalf("replace did not take effect: %+v", got)
	}

	list, _ := s.ListCharacters(ctx)
	if len(list) != 1 {
		t.Fatalf("expected a single character, got %d", len(list))
	}
}
