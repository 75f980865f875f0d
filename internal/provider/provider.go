// Package provider abstracts the external AI capabilities the dispatcher
// depends on: single-shot completion, named multi-stage chains, and voice.
// Each capability is independently optional; a nil reference in the Gateway
// means the capability was never configured for this deployment.
package provider

import "context"

// CompletionRequest is a single-shot generation request. Image, when
// non-nil, carries raw image bytes for multi-modal input.
type CompletionRequest struct {
	Prompt string
	Image  []byte
}

// Completion is the result of a completion call.
type Completion struct {
	Text   string
	Tokens int
}

// Completer submits a prompt (plus optional image) and returns text.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// ChainResult carries per-stage outputs by name and the final stage's text.
type ChainResult struct {
	Outputs map[string]string
	Final   string
}

// ChainRunner executes a named, fixed multi-stage prompt pipeline over
// structured inputs.
type ChainRunner interface {
	RunChain(ctx context.Context, name string, inputs map[string]string) (ChainResult, error)
}

// Voice provides speech recognition and synthesis.
type Voice interface {
	Transcribe(ctx context.Context, audio []byte, language string) (string, error)
	Synthesize(ctx context.Context, text, voiceProfile string) ([]byte, error)
}

// Conversationalist manages multi-turn conversation state on the chain side.
type Conversationalist interface {
	CreateConversation(userID string) (string, error)
	ContinueConversation(ctx context.Context, id, message string) (string, error)
	ClearConversation(id string)
}

// Gateway bundles the configured capabilities. Any field may be nil;
// callers check availability at each call site and define their own
// scoped fallback.
type Gateway struct {
	Completer     Completer
	Chains        ChainRunner
	Voice         Voice
	Conversations Conversationalist
}
