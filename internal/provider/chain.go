package provider

import (
	"context"
	"fmt"
	"strings"
)

// Stage is one step of a chain. Build renders the stage prompt from the
// chain's original inputs merged with all prior stage outputs.
type Stage struct {
	Name  string
	Build func(in map[string]string) string
}

// Chain is a fixed, named sequence of stages. Each stage's output is
// surfaced under its name and fed into subsequent stage templates.
type Chain struct {
	Name   string
	Stages []Stage
}

// Runner executes chains by issuing one completion per stage, sequentially.
// It implements ChainRunner.
type Runner struct {
	completer Completer
	chains    map[string]Chain
}

// NewRunner creates a Runner with the standard chain set registered.
func NewRunner(completer Completer) *Runner {
	r := &Runner{
		completer: completer,
		chains:    make(map[string]Chain),
	}
	for _, c := range standardChains() {
		r.chains[c.Name] = c
	}
	return r
}

// Register adds or replaces a chain definition.
func (r *Runner) Register(c Chain) {
	r.chains[c.Name] = c
}

// RunChain executes the named chain over the given inputs. Stage outputs
// accumulate into the working input map, so later stages see earlier
// results by name. The final stage's text is returned as Final.
func (r *Runner) RunChain(ctx context.Context, name string, inputs map[string]string) (ChainResult, error) {
	chain, ok := r.chains[name]
	if !ok {
		return ChainResult{}, fmt.Errorf("unknown chain %q", name)
	}

	working := make(map[string]string, len(inputs)+len(chain.Stages))
	for k, v := range inputs {
		working[k] = v
	}

	result := ChainResult{Outputs: make(map[string]string, len(chain.Stages))}
	for _, stage := range chain.Stages {
		completion, err := r.completer.Complete(ctx, CompletionRequest{Prompt: stage.Build(working)})
		if err != nil {
			return ChainResult{}, fmt.Errorf("chain %s stage %s: %w", name, stage.Name, err)
		}
		working[stage.Name] = completion.Text
		result.Outputs[stage.Name] = completion.Text
		result.Final = completion.Text
	}

	return result, nil
}

// standardChains returns the fixed chain set used by the dispatcher.
func standardChains() []Chain {
	return []Chain{
		{
			Name: "code_analysis",
			Stages: []Stage{
				{Name: "understanding", Build: func(in map[string]string) string {
					return joinSections(
						"Analyze the following "+orDefault(in["language"], "unknown")+" code and describe its purpose, key components, data flow, and dependencies.",
						"Code:\n"+in["code"],
					)
				}},
				{Name: "quality_assessment", Build: func(in map[string]string) string {
					return joinSections(
						"Based on this understanding:\n"+in["understanding"],
						"Assess the code across structure, readability, performance, security, and error handling. Give specific examples.",
						"Code:\n"+in["code"],
					)
				}},
				{Name: "improvements", Build: func(in map[string]string) string {
					return joinSections(
						"Understanding:\n"+in["understanding"],
						"Quality assessment:\n"+in["quality_assessment"],
						"Provide prioritized, actionable improvement recommendations with effort estimates and code examples where applicable.",
					)
				}},
			},
		},
		{
			Name: "architecture_planning",
			Stages: []Stage{
				{Name: "requirements", Build: func(in map[string]string) string {
					return joinSections(
						"Analyze the project requirements and constraints. Break down functional and non-functional requirements and define success criteria.",
						"Project description:\n"+in["project_description"],
						"Constraints:\n"+in["constraints"],
					)
				}},
				{Name: "architecture", Build: func(in map[string]string) string {
					return joinSections(
						"Based on this requirements analysis:\n"+in["requirements"],
						"Design a system architecture: component breakdown, data flow, technology stack, scalability and security strategy.",
					)
				}},
				{Name: "implementation_plan", Build: func(in map[string]string) string {
					return joinSections(
						"Requirements:\n"+in["requirements"],
						"Architecture:\n"+in["architecture"],
						"Create a phased implementation plan with milestones, component order, risks, and a testing strategy.",
					)
				}},
			},
		},
		{
			Name: "debugging",
			Stages: []Stage{
				{Name: "problem_analysis", Build: func(in map[string]string) string {
					return joinSections(
						"Analyze the debugging problem: categorize the error, identify the probable root cause and its propagation path.",
						"Error message:\n"+in["error_message"],
						"Code:\n"+in["code"],
						"Context:\n"+in["context"],
					)
				}},
				{Name: "solution_strategy", Build: func(in map[string]string) string {
					return joinSections(
						"Problem analysis:\n"+in["problem_analysis"],
						"Original code:\n"+in["code"],
						"Develop a step-by-step debugging strategy: what to monitor, which tests validate the fix, and alternative solutions.",
					)
				}},
				{Name: "fixed_code", Build: func(in map[string]string) string {
					return joinSections(
						"Problem analysis:\n"+in["problem_analysis"],
						"Solution strategy:\n"+in["solution_strategy"],
						"Original code:\n"+in["code"],
						"Provide the corrected code with annotations, an explanation of the changes, and prevention strategies.",
					)
				}},
			},
		},
		{
			Name: "documentation",
			Stages: []Stage{
				{Name: "documentation", Build: func(in map[string]string) string {
					return joinSections(
						"Generate "+orDefault(in["doc_type"], "API")+" documentation targeting "+orDefault(in["audience"], "developers")+": overview, API reference with examples, usage guide, troubleshooting.",
						"Code:\n"+in["code"],
					)
				}},
			},
		},
		{
			Name: "testing_strategy",
			Stages: []Stage{
				{Name: "test_analysis", Build: func(in map[string]string) string {
					return joinSections(
						"Analyze testing requirements: critical functionality, edge cases, error scenarios, and integration points.",
						"Code:\n"+in["code"],
						"Requirements:\n"+in["requirements"],
					)
				}},
				{Name: "test_strategy", Build: func(in map[string]string) string {
					return joinSections(
						"Test analysis:\n"+in["test_analysis"],
						"Develop a testing strategy: testing pyramid structure, framework recommendations, mock and fixture strategies, test data management.",
					)
				}},
			},
		},
		{
			Name: "code_review",
			Stages: []Stage{
				{Name: "review", Build: func(in map[string]string) string {
					return joinSections(
						"Conduct a code review of the following "+orDefault(in["language"], "unknown")+" code covering quality, correctness, performance, security, and testability.",
						"Review criteria: "+orDefault(in["review_criteria"], "standard"),
						"Code:\n"+in["code"],
					)
				}},
			},
		},
	}
}

func joinSections(sections ...string) string {
	return strings.Join(sections, "\n\n")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
