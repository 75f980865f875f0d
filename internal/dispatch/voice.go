package dispatch

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/luna-svc/luna/internal/mcp"
	"github.com/luna-svc/luna/internal/parse"
	"github.com/luna-svc/luna/internal/provider"
)

// commandKind is the coarse intent class of a spoken command.
type commandKind string

const (
	commandGenerate commandKind = "generate"
	commandDebug    commandKind = "debug"
	commandExplain  commandKind = "explain"
	commandHelp     commandKind = "help"
	commandOther    commandKind = "other"
)

// voiceCommand is the speech pipeline: transcribe (or take the text
// prompt), classify the command by keyword, produce a canned or delegated
// reply, and optionally synthesize it back to audio.
func (s *Service) voiceCommand(ctx context.Context, req mcp.Request) (mcp.Response, error) {
	command, err := s.resolveCommandText(ctx, req)
	if err != nil {
		return mcp.Response{}, err
	}

	kind := classifyCommand(command)
	reply, generated, err := s.answerCommand(ctx, kind, command, req.Language)
	if err != nil {
		return mcp.Response{}, err
	}

	resp := mcp.Response{
		Explanation:     reply,
		GeneratedCode:   generated,
		ConfidenceScore: s.scorer(reply),
		TokensUsed:      s.tokens.Count(command + reply),
		Result: map[string]any{
			"recognized_text": command,
			"command_type":    string(kind),
		},
	}

	if req.MetadataBool("voice_response") || req.MetadataBool("include_voice") {
		if s.gateway.Voice != nil {
			if audio, synthErr := s.gateway.Voice.Synthesize(ctx, reply, req.ContextString("voice_profile")); synthErr == nil {
				resp.VoiceOutput = encodeAudio(audio)
			}
		}
	}
	return resp, nil
}

// resolveCommandText prefers transcribed voice input over the text prompt.
// Neither being present is a request shape error.
func (s *Service) resolveCommandText(ctx context.Context, req mcp.Request) (string, error) {
	if req.VoiceInput != "" {
		if s.gateway.Voice == nil {
			return "", fmt.Errorf("speech recognition: %w", mcp.ErrCapabilityUnavailable)
		}
		audio, err := base64.StdEncoding.DecodeString(req.VoiceInput)
		if err != nil {
			return "", &mcp.ValidationError{Field: "voice_input", Reason: "invalid base64 audio data"}
		}
		text, err := s.gateway.Voice.Transcribe(ctx, audio, req.Language)
		if err != nil {
			return "", fmt.Errorf("speech recognition: %w", err)
		}
		return text, nil
	}
	if req.Prompt != "" {
		return req.Prompt, nil
	}
	return "", &mcp.ValidationError{Field: "voice_input", Reason: "no input provided: voice command requires voice_input or prompt"}
}

func classifyCommand(command string) commandKind {
	lower := strings.ToLower(command)
	switch {
	case strings.Contains(lower, "generate code") || strings.Contains(lower, "create function") || strings.Contains(lower, "write code"):
		return commandGenerate
	case strings.Contains(lower, "debug") || strings.Contains(lower, "fix"):
		return commandDebug
	case strings.Contains(lower, "explain") || strings.Contains(lower, "what is"):
		return commandExplain
	case strings.Contains(lower, "help"):
		return commandHelp
	default:
		return commandOther
	}
}

// answerCommand produces the reply text and, for generation commands, any
// generated code. Generation and explanation delegate to the completion
// capability; the rest are canned.
func (s *Service) answerCommand(ctx context.Context, kind commandKind, command, language string) (reply, generated string, err error) {
	switch kind {
	case commandGenerate:
		if s.gateway.Completer == nil {
			return "", "", fmt.Errorf("completion: %w", mcp.ErrCapabilityUnavailable)
		}
		lang := language
		if lang == "" {
			lang = "python"
		}
		completion, err := s.gateway.Completer.Complete(ctx, provider.CompletionRequest{
			Prompt: fmt.Sprintf("Generate %s code for the following spoken request. Include a brief explanation.\n\nRequest: %s", lang, command),
		})
		if err != nil {
			return "", "", fmt.Errorf("completion call: %w", err)
		}
		return completion.Text, parse.FirstCodeBlock(completion.Text), nil

	case commandExplain:
		if s.gateway.Completer == nil {
			return "", "", fmt.Errorf("completion: %w", mcp.ErrCapabilityUnavailable)
		}
		completion, err := s.gateway.Completer.Complete(ctx, provider.CompletionRequest{
			Prompt: "Explain the following in clear, concise terms suitable for a spoken answer.\n\n" + command,
		})
		if err != nil {
			return "", "", fmt.Errorf("completion call: %w", err)
		}
		return completion.Text, "", nil

	case commandDebug:
		return "I can help you debug. Share the error message and the code involved, and I will analyze the problem and suggest a fix.", "", nil

	case commandHelp:
		return "I can generate code, debug errors, explain concepts, design architectures, and write documentation or tests. Tell me what you need.", "", nil

	default:
		return fmt.Sprintf("I heard: %q. I can generate code, debug, or explain. Could you rephrase your request?", command), "", nil
	}
}
