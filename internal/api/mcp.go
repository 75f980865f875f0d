package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/luna-svc/luna/internal/analytics"
	"github.com/luna-svc/luna/internal/dispatch"
	core "github.com/luna-svc/luna/internal/mcp"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Service *dispatch.Service
}

// NewMCPServer creates an MCP server exposing the dispatch service as tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"luna",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("luna - universal development assistant: code generation, debugging, architecture design, documentation, and voice commands."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("process_request",
			mcp.WithDescription("Process a development-assistance request (code generation, debugging, architecture design, and more)."),
			mcp.WithString("task_type", mcp.Description("One of: code_generation, code_optimization, debugging, architecture_design, api_integration, documentation, testing, voice_command, multi_modal, workflow_automation"), mcp.Required()),
			mcp.WithString("prompt", mcp.Description("The task description"), mcp.Required()),
			mcp.WithString("user_id", mcp.Description("Owning user id"), mcp.Required()),
			mcp.WithString("language", mcp.Description("Programming language, if relevant")),
			mcp.WithString("context", mcp.Description("Optional JSON object with structured context (code, error_message, constraints, ...)")),
			mcp.WithString("metadata", mcp.Description("Optional JSON object with request metadata (include_voice, ...)")),
			mcp.WithNumber("priority", mcp.Description("Priority 1-5, 1 is highest (default 1)")),
		),
		mcpProcessRequest(deps),
	)

	s.AddTool(
		mcp.NewTool("create_session",
			mcp.WithDescription("Create a conversational session for follow-up messages."),
			mcp.WithString("user_id", mcp.Description("Owning user id"), mcp.Required()),
			mcp.WithString("project_id", mcp.Description("Optional project id")),
			mcp.WithString("session_name", mcp.Description("Optional display name")),
		),
		mcpCreateSession(deps),
	)

	s.AddTool(
		mcp.NewTool("continue_conversation",
			mcp.WithDescription("Send a follow-up message into an existing session."),
			mcp.WithString("session_id", mcp.Description("Session id from create_session"), mcp.Required()),
			mcp.WithString("message", mcp.Description("The message to send"), mcp.Required()),
		),
		mcpContinueConversation(deps),
	)

	s.AddTool(
		mcp.NewTool("get_analytics",
			mcp.WithDescription("Aggregate usage statistics for a session or user."),
			mcp.WithString("session_id", mcp.Description("Filter by session id")),
			mcp.WithString("user_id", mcp.Description("Filter by user id")),
			mcp.WithNumber("window_days", mcp.Description("Only include records from the last N days")),
		),
		mcpGetAnalytics(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"luna://capabilities",
			"Service Capabilities",
			mcp.WithResourceDescription("Supported task types and current capability health"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceCapabilities(deps),
	)

	return s
}

func mcpProcessRequest(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskType, err := req.RequireString("task_type")
		if err != nil {
			return mcpError("task_type is required"), nil
		}
		promptText, err := req.RequireString("prompt")
		if err != nil {
			return mcpError("prompt is required"), nil
		}
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}

		request := core.Request{
			TaskType: core.TaskType(taskType),
			Prompt:   promptText,
			UserID:   userID,
			Language: req.GetString("language", ""),
			Priority: req.GetInt("priority", 0),
		}
		if contextJSON := req.GetString("context", ""); contextJSON != "" {
			if !json.Valid([]byte(contextJSON)) {
				return mcpError("context must be a valid JSON object"), nil
			}
			request.Context = json.RawMessage(contextJSON)
		}
		if metadataJSON := req.GetString("metadata", ""); metadataJSON != "" {
			if !json.Valid([]byte(metadataJSON)) {
				return mcpError("metadata must be a valid JSON object"), nil
			}
			request.Metadata = json.RawMessage(metadataJSON)
		}

		resp := deps.Service.Process(ctx, request)
		b, err := json.Marshal(resp)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal response: %v", err)), nil
		}
		if resp.Status == core.StatusError {
			return mcpError(string(b)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpCreateSession(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}

		sess, err := deps.Service.CreateSession(userID, req.GetString("project_id", ""), req.GetString("session_name", ""))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to create session: %v", err)), nil
		}

		b, err := json.Marshal(sess)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal session: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpContinueConversation(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}

		reply, err := deps.Service.ContinueConversation(ctx, sessionID, message)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to continue conversation: %v", err)), nil
		}
		return mcpText(reply), nil
	}
}

func mcpGetAnalytics(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filter := analytics.Filter{
			SessionID:  req.GetString("session_id", ""),
			UserID:     req.GetString("user_id", ""),
			WindowDays: req.GetInt("window_days", 0),
		}
		if filter.SessionID == "" && filter.UserID == "" {
			return mcpError("session_id or user_id is required"), nil
		}

		stats := deps.Service.Analytics(filter)
		b, err := json.Marshal(stats)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal analytics: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceCapabilities(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		payload := map[string]any{
			"task_types": core.TaskTypes(),
			"health":     deps.Service.HealthCheck(ctx),
		}
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal capabilities: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
