package history

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "conversation.db"), nil)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndList(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	t.Run("empty history returns no turns", func(t *testing.T) {
		turns, err := s.List(ctx, "111@s.whatsapp.net")
		if err != nil {
			t.Fatalf("listing: %v", err)
		}
		if len(turns) != 0 {
			t.Errorf("expected 0 turns, got %d", len(turns))
		}
	})

	t.Run("turns come back in creation order", func(t *testing.T) {
		conv := "222@s.whatsapp.net"
		if err := s.Append(ctx, conv, RoleUser, "@sor hello"); err != nil {
			t.Fatalf("appending user turn: %v", err)
		}
		if err := s.Append(ctx, conv, RoleAssistant, "hi there"); err != nil {
			t.Fatalf("appending assistant turn: %v", err)
		}

		turns, err := s.List(ctx, conv)
		if err != nil {
			t.Fatalf("listing: %v", err)
		}
		if len(turns) != 2 {
			t.Fatalf("expected 2 turns, got %d", len(turns))
		}
		if turns[0].Role != RoleUser || turns[1].Role != RoleAssistant {
			t.Errorf("unexpected role order: %s, %s", turns[0].Role, turns[1].Role)
		}
		if turns[0].ID >= turns[1].ID {
			t.Errorf("ids not monotonic: %d then %d", turns[0].ID, turns[1].ID)
		}
	})

	t.Run("conversants are isolated", func(t *testing.T) {
		if err := s.Append(ctx, "333@s.whatsapp.net", RoleUser, "hey"); err != nil {
			t.Fatalf("appending: %v", err)
		}
		turns, err := s.List(ctx, "444@s.whatsapp.net")
		if err != nil {
			t.Fatalf("listing: %v", err)
		}
		if len(turns) != 0 {
			t.Errorf("expected no turns for other conversant, got %d", len(turns))
		}
	})
}

func TestContentEncoding(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	conv := "555@s.whatsapp.net"

	if err := s.Append(ctx, conv, RoleUser, "what is recursion?"); err != nil {
		t.Fatalf("appending user turn: %v", err)
	}
	if err := s.Append(ctx, conv, RoleAssistant, "recursion is..."); err != nil {
		t.Fatalf("appending assistant turn: %v", err)
	}

	turns, err := s.List(ctx, conv)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}

	t.Run("user turns decode as structured parts", func(t *testing.T) {
		if turns[0].Content.Kind != StructuredParts {
			t.Errorf("expected StructuredParts, got %v", turns[0].Content.Kind)
		}
		if turns[0].Content.Text != "what is recursion?" {
			t.Errorf("unexpected text: %q", turns[0].Content.Text)
		}
	})

	t.Run("assistant turns decode as plain text", func(t *testing.T) {
		if turns[1].Content.Kind != PlainText {
			t.Errorf("expected PlainText, got %v", turns[1].Content.Kind)
		}
		if turns[1].Content.Text != "recursion is..." {
			t.Errorf("unexpected text: %q", turns[1].Content.Text)
		}
	})
}

func TestDecodeContentFallback(t *testing.T) {
	// A user row that is not valid JSON must come back verbatim rather
	// than failing the whole replay.
	c := decodeContent(RoleUser, "not json at all")
	if c.Kind != PlainText || c.Text != "not json at all" {
		t.Errorf("unexpected fallback decode: %+v", c)
	}
}
