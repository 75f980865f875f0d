package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/luna-svc/luna/internal/mcp"
)

func TestConversation_ContinueUsesHistory(t *testing.T) {
	completer := &mockCompleter{responses: []Completion{
		{Text: "hello there"},
		{Text: "still here"},
	}}
	store := NewConversationStore(completer, 10)

	id, err := store.CreateConversation("user-1")
	if err != nil {
		t.Fatalf("creating conversation: %v", err)
	}

	if _, err := store.ContinueConversation(context.Background(), id, "hi"); err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if _, err := store.ContinueConversation(context.Background(), id, "are you there?"); err != nil {
		t.Fatalf("second turn: %v", err)
	}

	second := completer.prompts[1]
	if !strings.Contains(second, "[user]: hi") || !strings.Contains(second, "[assistant]: hello there") {
		t.Fatalf("second prompt missing history:\n%s", second)
	}
}

func TestConversation_UnknownIDNotFound(t *testing.T) {
	store := NewConversationStore(&mockCompleter{}, 10)
	_, err := store.ContinueConversation(context.Background(), "nonexistent-id", "hello")
	if !errors.Is(err, mcp.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConversation_WindowTrims(t *testing.T) {
	completer := &mockCompleter{}
	store := NewConversationStore(completer, 2)

	id, _ := store.CreateConversation("user-1")
	for i := 0; i < 6; i++ {
		if _, err := store.ContinueConversation(context.Background(), id, fmt.Sprintf("message %d", i)); err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
	}

	// With a window of 2 exchanges, the last prompt may only contain the
	// two prior exchanges, not the first ones.
	last := completer.prompts[len(completer.prompts)-1]
	if strings.Contains(last, "message 0") || strings.Contains(last, "message 1") {
		t.Fatalf("old turns leaked past the window:\n%s", last)
	}
	if !strings.Contains(last, "message 4") {
		t.Fatalf("recent turn missing from window:\n%s", last)
	}
}

func TestConversation_ClearIsIdempotent(t *testing.T) {
	store := NewConversationStore(&mockCompleter{}, 10)
	id, _ := store.CreateConversation("user-1")

	store.ClearConversation(id)
	store.ClearConversation(id)
	store.ClearConversation("never-existed")

	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d", store.Len())
	}
}

func TestSilentAudio_ScalesWithText(t *testing.T) {
	short := SilentAudio("hi")
	long := SilentAudio(strings.Repeat("a", 100))

	if len(short) == 0 {
		t.Fatal("silent audio must not be empty")
	}
	if len(long) <= len(short) {
		t.Fatalf("longer text should produce more audio: %d <= %d", len(long), len(short))
	}
	// 100 chars at ~0.1s each at 22050 Hz, 2 bytes per sample.
	if want := 100 * 22050 / 10 * 2; len(long) != want {
		t.Fatalf("expected %d bytes, got %d", want, len(long))
	}
}

func TestSilentAudio_EmptyTextMinimumLength(t *testing.T) {
	audio := SilentAudio("")
	if len(audio) != 22050/10*2 {
		t.Fatalf("expected 100ms minimum, got %d bytes", len(audio))
	}
}
