package parse

import (
	"fmt"
	"strings"
	"testing"

	"github.com/luna-svc/luna/internal/mcp"
)

func TestParse_ExtractsFirstCodeBlock(t *testing.T) {
	raw := "Here is the function:\n```python\nprint(1)\n```\nDone."
	f := Parse(mcp.TaskCodeGeneration, raw)

	if f.Code != "print(1)" {
		t.Fatalf("expected code %q, got %q", "print(1)", f.Code)
	}
}

func TestParse_FirstOfMultipleBlocks(t *testing.T) {
	raw := "```go\nfirst()\n```\ntext\n```go\nsecond()\n```"
	f := Parse(mcp.TaskCodeOptimization, raw)

	if f.Code != "first()" {
		t.Fatalf("expected first block, got %q", f.Code)
	}
}

func TestParse_NoCodeBlock(t *testing.T) {
	f := Parse(mcp.TaskDocumentation, "just prose, no code")
	if f.Code != "" {
		t.Fatalf("expected empty code, got %q", f.Code)
	}
	if f.Explanation != "just prose, no code" {
		t.Fatalf("unexpected explanation: %q", f.Explanation)
	}
}

func TestParse_CodeGenerationStripsFences(t *testing.T) {
	raw := "Intro text.\n```python\nprint(1)\n```\nOutro text."
	f := Parse(mcp.TaskCodeGeneration, raw)

	if strings.Contains(f.Explanation, "```") {
		t.Fatalf("explanation still contains fences: %q", f.Explanation)
	}
	if !strings.Contains(f.Explanation, "Intro text.") || !strings.Contains(f.Explanation, "Outro text.") {
		t.Fatalf("explanation lost prose: %q", f.Explanation)
	}
}

func TestParse_OtherTasksKeepRawExplanation(t *testing.T) {
	raw := "Analysis.\n```go\nx := 1\n```"
	f := Parse(mcp.TaskDebugging, raw)
	if f.Explanation != raw {
		t.Fatalf("expected raw explanation, got %q", f.Explanation)
	}
}

func TestParse_SuggestionsCappedAtFive(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&sb, "I suggest option %d\n", i)
	}
	f := Parse(mcp.TaskCodeOptimization, sb.String())

	if len(f.Suggestions) != 5 {
		t.Fatalf("expected 5 suggestions, got %d", len(f.Suggestions))
	}
}

func TestParse_SuggestionKeywords(t *testing.T) {
	raw := "You should Consider caching.\nA useful tip: use indexes.\nNothing here.\nI recommend retries."
	f := Parse(mcp.TaskAPIIntegration, raw)

	if len(f.Suggestions) != 3 {
		t.Fatalf("expected 3 suggestions, got %d: %v", len(f.Suggestions), f.Suggestions)
	}
}

func TestParse_DebugStepsOnlyForDebugging(t *testing.T) {
	raw := "First, check the input.\nThen validate the state.\nFinally, add a guard."

	debug := Parse(mcp.TaskDebugging, raw)
	if len(debug.DebugSteps) != 3 {
		t.Fatalf("expected 3 debug steps, got %d: %v", len(debug.DebugSteps), debug.DebugSteps)
	}

	other := Parse(mcp.TaskTesting, raw)
	if len(other.DebugSteps) != 0 {
		t.Fatalf("expected no debug steps for testing task, got %v", other.DebugSteps)
	}
}

func TestParse_ArchitectureComponents(t *testing.T) {
	raw := "Overview.\nComponent: API Gateway\n- Component: Session Store\nNo match here."
	f := Parse(mcp.TaskArchitectureDesign, raw)

	if len(f.Components) != 2 {
		t.Fatalf("expected 2 components, got %d: %v", len(f.Components), f.Components)
	}
	if f.Components[0] != "API Gateway" {
		t.Fatalf("unexpected first component: %q", f.Components[0])
	}
}

func TestParse_NoMatchesYieldEmptyLists(t *testing.T) {
	f := Parse(mcp.TaskArchitectureDesign, "plain text with no structure at all")
	if len(f.Suggestions) != 0 || len(f.DebugSteps) != 0 || len(f.Components) != 0 {
		t.Fatalf("expected empty extraction, got %+v", f)
	}
}
