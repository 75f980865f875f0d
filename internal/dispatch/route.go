package dispatch

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/luna-svc/luna/internal/attach"
	"github.com/luna-svc/luna/internal/mcp"
	"github.com/luna-svc/luna/internal/parse"
	"github.com/luna-svc/luna/internal/provider"
)

// chainContextThreshold is the context size above which code generation
// upgrades from a direct completion to an analysis chain.
const chainContextThreshold = 3

// route selects and executes the orchestration strategy for the request's
// task type. It returns a partial response; Process fills the envelope
// fields (id, status, timing).
func (s *Service) route(ctx context.Context, req mcp.Request) (mcp.Response, error) {
	req.Files = attach.Normalize(req.Files)

	switch req.TaskType {
	case mcp.TaskCodeGeneration:
		if req.ContextEntries() > chainContextThreshold && s.gateway.Chains != nil {
			return s.chainThenComplete(ctx, req, "code_analysis")
		}
		return s.directCompletion(ctx, req)

	case mcp.TaskCodeOptimization:
		return s.chainThenComplete(ctx, req, "code_analysis")

	case mcp.TaskDebugging:
		return s.chainThenComplete(ctx, req, "debugging")

	case mcp.TaskArchitectureDesign:
		return s.chainThenComplete(ctx, req, "architecture_planning")

	case mcp.TaskAPIIntegration:
		return s.directCompletion(ctx, req)

	case mcp.TaskDocumentation:
		return s.chainOnly(ctx, req, "documentation")

	case mcp.TaskTesting:
		return s.chainThenComplete(ctx, req, "testing_strategy")

	case mcp.TaskVoiceCommand:
		return s.voiceCommand(ctx, req)

	case mcp.TaskMultiModal:
		return s.multiModal(ctx, req)

	case mcp.TaskWorkflowAutomation:
		return s.chainThenComplete(ctx, req, "architecture_planning")

	default:
		// Unrecognized types fall back to a plain completion of the raw
		// prompt rather than an error.
		completion, err := s.complete(ctx, req.Prompt, nil)
		if err != nil {
			return mcp.Response{}, err
		}
		return s.assemble(req, completion, nil), nil
	}
}

// directCompletion is the single-call strategy: one rendered prompt, one
// completion.
func (s *Service) directCompletion(ctx context.Context, req mcp.Request) (mcp.Response, error) {
	completion, err := s.complete(ctx, s.builder.Build(req), nil)
	if err != nil {
		return mcp.Response{}, err
	}
	return s.assemble(req, completion, nil), nil
}

// chainThenComplete runs the named chain and issues a final completion
// seeded with the chain's result plus the original rendered prompt.
func (s *Service) chainThenComplete(ctx context.Context, req mcp.Request, chainName string) (mcp.Response, error) {
	chainResult, err := s.runChain(ctx, chainName, s.chainInputs(req))
	if err != nil {
		return mcp.Response{}, err
	}

	seeded := fmt.Sprintf("%s\n\nPrior analysis:\n%s", s.builder.Build(req), chainResult.Final)
	completion, err := s.complete(ctx, seeded, nil)
	if err != nil {
		return mcp.Response{}, err
	}
	return s.assemble(req, completion, &chainResult), nil
}

// chainOnly runs the named chain and returns its final output as-is, with
// no secondary completion call.
func (s *Service) chainOnly(ctx context.Context, req mcp.Request, chainName string) (mcp.Response, error) {
	chainResult, err := s.runChain(ctx, chainName, s.chainInputs(req))
	if err != nil {
		return mcp.Response{}, err
	}
	completion := provider.Completion{
		Text:   chainResult.Final,
		Tokens: s.tokens.Count(chainResult.Final),
	}
	return s.assemble(req, completion, &chainResult), nil
}

// multiModal completes with the prompt plus an optional inline image.
func (s *Service) multiModal(ctx context.Context, req mcp.Request) (mcp.Response, error) {
	var image []byte
	if req.ImageInput != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.ImageInput)
		if err != nil {
			return mcp.Response{}, &mcp.ValidationError{Field: "image_input", Reason: "invalid base64 image data"}
		}
		image = decoded
	}

	completion, err := s.complete(ctx, s.builder.Build(req), image)
	if err != nil {
		return mcp.Response{}, err
	}
	return s.assemble(req, completion, nil), nil
}

func (s *Service) complete(ctx context.Context, promptText string, image []byte) (provider.Completion, error) {
	if s.gateway.Completer == nil {
		return provider.Completion{}, fmt.Errorf("completion: %w", mcp.ErrCapabilityUnavailable)
	}
	completion, err := s.gateway.Completer.Complete(ctx, provider.CompletionRequest{
		Prompt: promptText,
		Image:  image,
	})
	if err != nil {
		return provider.Completion{}, fmt.Errorf("completion call: %w", err)
	}
	if completion.Tokens == 0 {
		completion.Tokens = s.tokens.Count(promptText + completion.Text)
	}
	return completion, nil
}

func (s *Service) runChain(ctx context.Context, name string, inputs map[string]string) (provider.ChainResult, error) {
	if s.gateway.Chains == nil {
		return provider.ChainResult{}, fmt.Errorf("chain %s: %w", name, mcp.ErrCapabilityUnavailable)
	}
	result, err := s.gateway.Chains.RunChain(ctx, name, inputs)
	if err != nil {
		return provider.ChainResult{}, fmt.Errorf("chain call: %w", err)
	}
	return result, nil
}

// chainInputs derives the structured chain inputs from a request. Code is
// taken from the context, the first attached file, or the prompt itself,
// in that order.
func (s *Service) chainInputs(req mcp.Request) map[string]string {
	code := req.ContextString("code")
	if code == "" && len(req.Files) > 0 {
		code = req.Files[0].Content
	}
	if code == "" {
		code = req.Prompt
	}

	inputs := map[string]string{
		"language":            req.Language,
		"code":                code,
		"error_message":       req.ContextString("error_message"),
		"context":             req.ContextString("context"),
		"project_description": req.Prompt,
		"constraints":         req.ContextString("constraints"),
		"requirements":        req.ContextString("requirements"),
		"doc_type":            req.ContextString("doc_type"),
		"audience":            req.ContextString("audience"),
		"review_criteria":     req.ContextString("review_criteria"),
	}
	return inputs
}

// assemble turns raw completion text into a structured partial response.
func (s *Service) assemble(req mcp.Request, completion provider.Completion, chainResult *provider.ChainResult) mcp.Response {
	fields := parse.Parse(req.TaskType, completion.Text)

	resp := mcp.Response{
		GeneratedCode:   fields.Code,
		Explanation:     fields.Explanation,
		Suggestions:     fields.Suggestions,
		ConfidenceScore: s.scorer(completion.Text),
		TokensUsed:      completion.Tokens,
	}

	result := make(map[string]any)
	if len(fields.DebugSteps) > 0 {
		result["debug_steps"] = fields.DebugSteps
	}
	if len(fields.Components) > 0 {
		result["components"] = fields.Components
	}
	if chainResult != nil && len(chainResult.Outputs) > 0 {
		stages := make(map[string]any, len(chainResult.Outputs))
		for name, text := range chainResult.Outputs {
			stages[name] = text
		}
		result["chain_outputs"] = stages
	}
	if len(result) > 0 {
		resp.Result = result
	}
	return resp
}

func encodeAudio(audio []byte) string {
	return base64.StdEncoding.EncodeToString(audio)
}
