package mcp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// TaskType identifies the kind of development assistance a request asks for.
type TaskType string

const (
	TaskCodeGeneration     TaskType = "code_generation"
	TaskCodeOptimization   TaskType = "code_optimization"
	TaskDebugging          TaskType = "debugging"
	TaskArchitectureDesign TaskType = "architecture_design"
	TaskAPIIntegration     TaskType = "api_integration"
	TaskDocumentation      TaskType = "documentation"
	TaskTesting            TaskType = "testing"
	TaskVoiceCommand       TaskType = "voice_command"
	TaskMultiModal         TaskType = "multi_modal"
	TaskWorkflowAutomation TaskType = "workflow_automation"
)

// TaskTypes returns all supported task types in a stable order.
func TaskTypes() []TaskType {
	return []TaskType{
		TaskCodeGeneration,
		TaskCodeOptimization,
		TaskDebugging,
		TaskArchitectureDesign,
		TaskAPIIntegration,
		TaskDocumentation,
		TaskTesting,
		TaskVoiceCommand,
		TaskMultiModal,
		TaskWorkflowAutomation,
	}
}

// Valid reports whether t is one of the supported task types.
func (t TaskType) Valid() bool {
	for _, known := range TaskTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Status values for a Response.
const (
	StatusSuccess    = "success"
	StatusError      = "error"
	StatusProcessing = "processing"
	StatusQueued     = "queued"
)

// File is an attachment carried with a request.
type File struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Request is a single development-assistance request.
// Context and Metadata are kept as raw JSON so arbitrary client payloads
// survive round-trips; use ContextEntries/ContextString/MetadataBool for
// field access.
type Request struct {
	ID         string          `json:"id"`
	TaskType   TaskType        `json:"task_type"`
	UserID     string          `json:"user_id"`
	ProjectID  string          `json:"project_id,omitempty"`
	Language   string          `json:"language,omitempty"`
	Prompt     string          `json:"prompt"`
	Context    json.RawMessage `json:"context,omitempty"`
	Files      []File          `json:"files,omitempty"`
	VoiceInput string          `json:"voice_input,omitempty"` // base64 audio
	ImageInput string          `json:"image_input,omitempty"` // base64 image
	Priority   int             `json:"priority,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Normalize fills generated fields and validates the request shape.
// A missing ID is generated, a zero priority defaults to 1, a zero
// creation timestamp is set to now.
func (r *Request) Normalize() error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Priority == 0 {
		r.Priority = 1
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	if !r.TaskType.Valid() {
		return &ValidationError{Field: "task_type", Reason: fmt.Sprintf("unknown task type %q", r.TaskType)}
	}
	if r.Priority < 1 || r.Priority > 5 {
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("priority %d outside [1,5]", r.Priority)}
	}
	if r.UserID == "" {
		return &ValidationError{Field: "user_id", Reason: "user_id is required"}
	}
	return nil
}

// ContextEntries returns the number of top-level keys in the context object.
func (r Request) ContextEntries() int {
	if len(r.Context) == 0 {
		return 0
	}
	parsed := gjson.ParseBytes(r.Context)
	if !parsed.IsObject() {
		return 0
	}
	n := 0
	parsed.ForEach(func(_, _ gjson.Result) bool {
		n++
		return true
	})
	return n
}

// ContextString returns the string value of a top-level context key, or "".
func (r Request) ContextString(key string) string {
	if len(r.Context) == 0 {
		return ""
	}
	return gjson.GetBytes(r.Context, key).String()
}

// MetadataBool returns the boolean value of a top-level metadata key.
func (r Request) MetadataBool(key string) bool {
	if len(r.Metadata) == 0 {
		return false
	}
	return gjson.GetBytes(r.Metadata, key).Bool()
}

// Response is the uniform envelope returned for every processed request.
// Status "error" implies ErrorMessage is set; "success" implies it is empty.
type Response struct {
	RequestID       string         `json:"request_id"`
	Status          string         `json:"status"`
	Result          map[string]any `json:"result,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	GeneratedCode   string         `json:"generated_code,omitempty"`
	Explanation     string         `json:"explanation,omitempty"`
	Suggestions     []string       `json:"suggestions,omitempty"`
	ConfidenceScore float64        `json:"confidence_score,omitempty"`
	ExecutionTime   float64        `json:"execution_time,omitempty"` // seconds
	TokensUsed      int            `json:"tokens_used,omitempty"`
	VoiceOutput     string         `json:"voice_output,omitempty"` // base64 audio
	CreatedAt       time.Time      `json:"created_at"`
	CompletedAt     time.Time      `json:"completed_at"`
}

// Session is an in-memory conversational context tied to one user.
type Session struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	ProjectID      string          `json:"project_id,omitempty"`
	Name           string          `json:"session_name"`
	CreatedAt      time.Time       `json:"created_at"`
	LastActivity   time.Time       `json:"last_activity"`
	Active         bool            `json:"is_active"`
	Context        json.RawMessage `json:"context,omitempty"`
	ConversationID string          `json:"conversation_id,omitempty"`
}

// AnalyticsRecord is one immutable entry in the request log.
type AnalyticsRecord struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id,omitempty"`
	RequestID    string    `json:"request_id"`
	TaskType     TaskType  `json:"task_type"`
	Language     string    `json:"language,omitempty"`
	Success      bool      `json:"success"`
	ResponseTime float64   `json:"response_time"` // seconds
	TokensUsed   int       `json:"tokens_used"`
	CreatedAt    time.Time `json:"created_at"`
}

// AggregateStats summarises a filtered, time-windowed slice of the log.
type AggregateStats struct {
	TotalRequests     int            `json:"total_requests"`
	SuccessRate       float64        `json:"success_rate"` // percent
	AvgResponseTime   float64        `json:"avg_response_time"`
	TotalTokens       int            `json:"total_tokens"`
	TaskTypeBreakdown map[string]int `json:"task_type_breakdown"`
}
