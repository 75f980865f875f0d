// Package parse extracts structured fields from unstructured provider text.
// The extraction is deliberately shallow pattern matching: unmatched
// patterns yield empty results, never errors.
package parse

import (
	"regexp"
	"strings"

	"github.com/luna-svc/luna/internal/mcp"
)

// Fields holds the structured pieces extracted from a provider response.
type Fields struct {
	Code        string
	Explanation string
	Suggestions []string
	DebugSteps  []string
	Components  []string
}

const maxSuggestions = 5

var (
	codeFenceRe = regexp.MustCompile("(?s)```[a-zA-Z0-9_+-]*\n(.*?)\n?```")

	suggestionKeywords = []string{"suggest", "recommend", "consider", "tip"}
	debugStepKeywords  = []string{"step", "first", "next", "then", "finally"}

	// componentRe matches "Component: name" style lines and bold/numbered
	// component headings produced by architecture responses.
	componentRe = regexp.MustCompile(`(?i)^\s*(?:[-*\d.]+\s*)?(?:\*\*)?component\s*[:\-]\s*(?:\*\*)?\s*(.+?)\s*(?:\*\*)?\s*$`)
)

// Parse extracts task-type-specific fields from raw provider text.
func Parse(taskType mcp.TaskType, raw string) Fields {
	f := Fields{
		Code:        FirstCodeBlock(raw),
		Explanation: raw,
		Suggestions: keywordLines(raw, suggestionKeywords, maxSuggestions),
	}

	switch taskType {
	case mcp.TaskCodeGeneration:
		f.Explanation = stripCodeFences(raw)
	case mcp.TaskDebugging:
		f.DebugSteps = keywordLines(raw, debugStepKeywords, 0)
	case mcp.TaskArchitectureDesign:
		f.Components = componentNames(raw)
	}

	return f
}

// FirstCodeBlock returns the body of the first fenced code block, or "".
func FirstCodeBlock(text string) string {
	m := codeFenceRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

// stripCodeFences removes all fenced code blocks, leaving the prose.
func stripCodeFences(text string) string {
	return strings.TrimSpace(codeFenceRe.ReplaceAllString(text, ""))
}

// keywordLines returns the lines containing any of the keywords
// (case-insensitive), capped at limit entries when limit > 0.
func keywordLines(text string, keywords []string, limit int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				out = append(out, strings.TrimSpace(line))
				break
			}
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// componentNames extracts named architectural components. Partial or empty
// results are expected for free-form responses.
func componentNames(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if m := componentRe.FindStringSubmatch(line); m != nil {
			name := strings.TrimSpace(m[1])
			if name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}
