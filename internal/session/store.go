// Package session holds in-memory conversational sessions, one per user
// interaction context, with idle-TTL eviction.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"

	"github.com/luna-svc/luna/internal/mcp"
	"github.com/luna-svc/luna/internal/provider"
)

const (
	defaultTTL          = 24 * time.Hour
	defaultSessionName  = "Default Session"
	fallbackPromptShape = "You are a development assistant. Reply to the user's message.\n\nMessage: %s"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Store owns all live sessions. Conversation continuity delegates to the
// chain-side conversation handle when one exists, else falls back to a
// one-off completion call.
type Store struct {
	conversations provider.Conversationalist // optional
	completer     provider.Completer         // optional, fallback path
	ttl           time.Duration
	clock         Clock

	mu       sync.Mutex
	sessions map[string]*mcp.Session
}

// NewStore creates a Store. ttl <= 0 uses the 24h default. Either provider
// reference may be nil.
func NewStore(conversations provider.Conversationalist, completer provider.Completer, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{
		conversations: conversations,
		completer:     completer,
		ttl:           ttl,
		clock:         realClock{},
		sessions:      make(map[string]*mcp.Session),
	}
}

// NewStoreWithClock creates a Store with a custom clock (for testing).
func NewStoreWithClock(conversations provider.Conversationalist, completer provider.Completer, ttl time.Duration, clock Clock) *Store {
	s := NewStore(conversations, completer, ttl)
	s.clock = clock
	return s
}

// Create allocates a fresh session, requesting a chain-side conversation
// handle when the capability is configured. A failed handle request logs a
// warning and leaves the session without one (fallback path still works).
func (s *Store) Create(userID, projectID, name string) (mcp.Session, error) {
	if userID == "" {
		return mcp.Session{}, &mcp.ValidationError{Field: "user_id", Reason: "user_id is required"}
	}
	if name == "" {
		name = defaultSessionName
	}

	now := s.clock.Now().UTC()
	sess := &mcp.Session{
		ID:           uuid.New().String(),
		UserID:       userID,
		ProjectID:    projectID,
		Name:         name,
		CreatedAt:    now,
		LastActivity: now,
		Active:       true,
		Context:      []byte(`{}`),
	}

	if s.conversations != nil {
		convID, err := s.conversations.CreateConversation(userID)
		if err != nil {
			slog.Warn("failed to create conversation handle, session will use one-off completions", "error", err)
		} else {
			sess.ConversationID = convID
		}
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return *sess, nil
}

// Get returns the session and refreshes its last-activity timestamp.
func (s *Store) Get(id string) (mcp.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return mcp.Session{}, false
	}
	sess.LastActivity = s.clock.Now().UTC()
	return *sess, true
}

// Continue delivers a message into the session's conversation and returns
// the reply text. Absent ids fail with mcp.ErrNotFound.
func (s *Store) Continue(ctx context.Context, id, message string) (string, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return "", fmt.Errorf("session %s: %w", id, mcp.ErrNotFound)
	}
	sess.LastActivity = s.clock.Now().UTC()
	if patched, err := sjson.SetBytes(sess.Context, "last_message", message); err == nil {
		sess.Context = patched
	}
	convID := sess.ConversationID
	s.mu.Unlock()

	if convID != "" && s.conversations != nil {
		return s.conversations.ContinueConversation(ctx, convID, message)
	}

	if s.completer == nil {
		return "", fmt.Errorf("continuing session %s: %w", id, mcp.ErrCapabilityUnavailable)
	}
	completion, err := s.completer.Complete(ctx, provider.CompletionRequest{
		Prompt: fmt.Sprintf(fallbackPromptShape, message),
	})
	if err != nil {
		return "", fmt.Errorf("continuing session %s: %w", id, err)
	}
	return completion.Text, nil
}

// Clear removes a session and its conversation handle. Removing an absent
// id is a no-op.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if ok && sess.ConversationID != "" && s.conversations != nil {
		s.conversations.ClearConversation(sess.ConversationID)
	}
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// EvictIdle removes sessions idle past the TTL and returns how many went.
func (s *Store) EvictIdle() int {
	cutoff := s.clock.Now().Add(-s.ttl)

	s.mu.Lock()
	var evicted []*mcp.Session
	for id, sess := range s.sessions {
		if sess.LastActivity.Before(cutoff) {
			evicted = append(evicted, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range evicted {
		if sess.ConversationID != "" && s.conversations != nil {
			s.conversations.ClearConversation(sess.ConversationID)
		}
	}
	if len(evicted) > 0 {
		slog.Info("evicted idle sessions", "count", len(evicted))
	}
	return len(evicted)
}

// RunJanitor evicts idle sessions on the given interval until ctx is
// cancelled. interval <= 0 defaults to one hour.
func (s *Store) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.EvictIdle()
		}
	}
}
