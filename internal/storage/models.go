package storage

import (
	"time"
)

// Interaction is one persisted row of the request log. It mirrors the
// in-memory analytics record so the log survives restarts.
type Interaction struct {
	ID           string    `json:"id"`
	RequestID    string    `json:"request_id"`
	SessionID    string    `json:"session_id,omitempty"`
	UserID       string    `json:"user_id,omitempty"`
	TaskType     string    `json:"task_type"`
	Language     string    `json:"language,omitempty"`
	Success      bool      `json:"success"`
	ResponseTime float64   `json:"response_time"` // seconds
	TokensUsed   int       `json:"tokens_used"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// AutomationJob is a stored automation definition managed over the CRUD API.
type AutomationJob struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Type        string    `json:"type"` // "scheduled", "triggered", "manual"
	Status      string    `json:"status"` // "active", "paused", "disabled"
	ConfigJSON  string    `json:"config"` // free-form config stored as JSON text
	LastRun     time.Time `json:"last_run,omitzero"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AutomationJob status values.
const (
	JobStatusActive   = "active"
	JobStatusPaused   = "paused"
	JobStatusDisabled = "disabled"
)
