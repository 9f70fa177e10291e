// Package validator runs the fixed Syntax/Build/Test/Lint pipeline against
// a task's provider response, producing a ValidationResult.
package validator

import (
	"context"
	"regexp"
	"strings"

	"github.com/hugo-lorenzo-mato/merlin/internal/core"
)

// Stage is one pipeline step. Stages run in fixed order; a Stage that
// doesn't require a build workspace (Syntax) ignores env.
type Stage interface {
	Name() string
	Run(ctx context.Context, response core.Response, task *core.Task, env *BuildEnv) core.StageResult
}

var syntaxErrorTokens = regexp.MustCompile(`(?i)\b(syntax error|parse error)\b`)

// SyntaxStage is a heuristic check over the response text: it flags
// explicit error tokens and counts mismatched braces/parens/brackets.
type SyntaxStage struct{}

func (SyntaxStage) Name() string { return "syntax" }

func (SyntaxStage) Run(_ context.Context, response core.Response, _ *core.Task, _ *BuildEnv) core.StageResult {
	if syntaxErrorTokens.MatchString(response.Text) {
		return core.StageResult{Name: "syntax", Passed: false, Score: 0.0, Details: "explicit syntax/parse error token found"}
	}

	score := 1.0
	mismatches := 0
	for _, pair := range [][2]rune{{'(', ')'}, {'{', '}'}, {'[', ']'}} {
		if count(response.Text, pair[0]) != count(response.Text, pair[1]) {
			mismatches++
		}
	}
	score -= 0.5 * float64(mismatches)
	if score < 0 {
		score = 0
	}
	return core.StageResult{
		Name:    "syntax",
		Passed:  mismatches == 0,
		Score:   score,
		Details: detailsFor(mismatches),
	}
}

func count(s string, r rune) int {
	return strings.Count(s, string(r))
}

func detailsFor(mismatches int) string {
	if mismatches == 0 {
		return "clean"
	}
	return "mismatched delimiter pairs"
}

// skippedResult is what every build-dependent stage returns when the task
// doesn't touch buildable source.
func skippedResult(name string) core.StageResult {
	return core.StageResult{Name: name, Passed: true, Score: 1.0, Details: "skipped"}
}

// requiresBuildCheck derives whether task's declared changes touch
// buildable source, per spec.md §4.6's skip rule.
func requiresBuildCheck(task *core.Task, response core.Response) bool {
	return core.TouchesSource(response.Changes) && task.Action != core.ActionExplain && task.Action != core.ActionSearch
}
