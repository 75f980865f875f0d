package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/luna-svc/luna/internal/mcp"
)

const defaultMemoryWindow = 10

// turn is a single exchange in a conversation's windowed memory.
type turn struct {
	role    string
	content string
}

type conversation struct {
	userID string
	turns  []turn
}

// ConversationStore holds multi-turn conversation state and answers
// follow-up messages with the prior window prepended to the prompt.
// It implements Conversationalist.
type ConversationStore struct {
	completer Completer
	window    int

	mu            sync.Mutex
	conversations map[string]*conversation
}

// NewConversationStore creates a store with the given memory window
// (exchanges kept per conversation). window <= 0 uses the default of 10.
func NewConversationStore(completer Completer, window int) *ConversationStore {
	if window <= 0 {
		window = defaultMemoryWindow
	}
	return &ConversationStore{
		completer:     completer,
		window:        window,
		conversations: make(map[string]*conversation),
	}
}

// CreateConversation allocates a fresh conversation for the user.
func (s *ConversationStore) CreateConversation(userID string) (string, error) {
	id := uuid.New().String()
	s.mu.Lock()
	s.conversations[id] = &conversation{userID: userID}
	s.mu.Unlock()
	return id, nil
}

// ContinueConversation appends the message, issues a completion with the
// remembered window as context, records the reply, and returns it.
func (s *ConversationStore) ContinueConversation(ctx context.Context, id, message string) (string, error) {
	s.mu.Lock()
	conv, ok := s.conversations[id]
	if !ok {
		s.mu.Unlock()
		return "", fmt.Errorf("conversation %s: %w", id, mcp.ErrNotFound)
	}
	history := make([]turn, len(conv.turns))
	copy(history, conv.turns)
	s.mu.Unlock()

	completion, err := s.completer.Complete(ctx, CompletionRequest{
		Prompt: renderConversationPrompt(history, message),
	})
	if err != nil {
		return "", fmt.Errorf("continuing conversation %s: %w", id, err)
	}

	s.mu.Lock()
	// Conversation may have been cleared while the call was in flight.
	if conv, ok := s.conversations[id]; ok {
		conv.turns = append(conv.turns, turn{role: "user", content: message}, turn{role: "assistant", content: completion.Text})
		if max := s.window * 2; len(conv.turns) > max {
			conv.turns = conv.turns[len(conv.turns)-max:]
		}
	}
	s.mu.Unlock()

	return completion.Text, nil
}

// ClearConversation removes the conversation. Absent ids are a no-op.
func (s *ConversationStore) ClearConversation(id string) {
	s.mu.Lock()
	delete(s.conversations, id)
	s.mu.Unlock()
}

// Len returns the number of live conversations.
func (s *ConversationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

func renderConversationPrompt(history []turn, message string) string {
	var sb strings.Builder
	sb.WriteString("You are a development assistant in an ongoing conversation. Continue it naturally.\n\n")
	for _, t := range history {
		sb.WriteString(fmt.Sprintf("[%s]: %s\n", t.role, t.content))
	}
	sb.WriteString(fmt.Sprintf("[user]: %s\n[assistant]:", message))
	return sb.String()
}
