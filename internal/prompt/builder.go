// Package prompt renders task-specific instruction strings from requests.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/luna-svc/luna/internal/mcp"
	"github.com/luna-svc/luna/internal/tokencount"
)

// Builder assembles completion prompts from a request's task type, language,
// context, attached files, and metadata.
type Builder struct {
	tokens tokencount.Counter
}

// New creates a Builder. A nil counter falls back to the 4-chars heuristic.
func New(tokens tokencount.Counter) *Builder {
	if tokens == nil {
		tokens = tokencount.Heuristic{}
	}
	return &Builder{tokens: tokens}
}

// Build renders the full prompt for a request. It is a pure function of its
// input: missing optional fields are omitted and no error is ever returned.
// Parts are joined with blank-line separators in a fixed order: preamble,
// language, context, files, task prompt, metadata.
func (b *Builder) Build(req mcp.Request) string {
	var parts []string

	if p := Preamble(req.TaskType); p != "" {
		parts = append(parts, p)
	}

	if req.Language != "" {
		parts = append(parts, "Programming Language: "+req.Language)
	}

	if block := indentJSON(req.Context); block != "" {
		parts = append(parts, "Context: "+block)
	}

	for _, f := range req.Files {
		name := f.Name
		if name == "" {
			name = "unknown"
		}
		parts = append(parts, fmt.Sprintf("File: %s\nContent: %s", name, f.Content))
	}

	if req.Prompt != "" {
		parts = append(parts, "Task: "+req.Prompt)
	}

	if block := indentJSON(req.Metadata); block != "" {
		parts = append(parts, "Additional Information: "+block)
	}

	return strings.Join(parts, "\n\n")
}

// EstimateTokens reports the approximate token footprint of a prompt.
func (b *Builder) EstimateTokens(text string) int {
	return b.tokens.Count(text)
}

// indentJSON pretty-prints a raw JSON object, returning "" for empty or
// malformed input and for empty objects.
func indentJSON(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "{}" || trimmed == "null" {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(trimmed), "", "  "); err != nil {
		return ""
	}
	return buf.String()
}
