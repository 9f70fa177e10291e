package validator

import (
	"context"
	"time"

	"github.com/hugo-lorenzo-mato/merlin/internal/core"
)

// BuildStage runs the configured build command inside an IsolatedBuildEnv.
// It applies only when the task requires a build check and a workspace is
// present; otherwise it's skipped per spec.md §4.6.
type BuildStage struct {
	Commands       Commands
	TimeoutSeconds int
}

func (BuildStage) Name() string { return "build" }

func (s BuildStage) Run(ctx context.Context, response core.Response, task *core.Task, env *BuildEnv) core.StageResult {
	if !requiresBuildCheck(task, response) || env == nil {
		return skippedResult("build")
	}

	timeout := time.Duration(s.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := runCommand(runCtx, env.Dir, s.Commands.Build)
	if err != nil {
		return core.StageResult{Name: "build", Passed: false, Score: 0.0, Details: out, Errors: []string{err.Error()}}
	}
	return core.StageResult{Name: "build", Passed: true, Score: 1.0, Details: "build succeeded"}
}

// TestStage runs the configured test command and scores passed/total.
type TestStage struct {
	Commands       Commands
	TimeoutSeconds int
	MinPassRate    float64 // default 1.0
}

func (TestStage) Name() string { return "test" }

func (s TestStage) Run(ctx context.Context, response core.Response, task *core.Task, env *BuildEnv) core.StageResult {
	if !requiresBuildCheck(task, response) || env == nil {
		return skippedResult("test")
	}

	timeout := time.Duration(s.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, _ := runCommand(runCtx, env.Dir, s.Commands.Test)
	passed, failed, total := parseTestCounts(out)

	minPassRate := s.MinPassRate
	if minPassRate <= 0 {
		minPassRate = 1.0
	}
	if total == 0 {
		return core.StageResult{Name: "test", Passed: true, Score: 1.0, Details: "no tests ran"}
	}

	score := float64(passed) / float64(total)
	result := core.StageResult{
		Name:   "test",
		Passed: score >= minPassRate,
		Score:  score,
	}
	if failed > 0 {
		result.Errors = append(result.Errors, "test failures detected")
	}
	return result
}

// LintStage runs the configured lint command and scores on warning count.
type LintStage struct {
	Commands       Commands
	MaxWarnings    int // default 10
	TimeoutSeconds int
}

func (LintStage) Name() string { return "lint" }

func (s LintStage) Run(ctx context.Context, response core.Response, task *core.Task, env *BuildEnv) core.StageResult {
	if !requiresBuildCheck(task, response) || env == nil {
		return skippedResult("lint")
	}

	timeout := time.Duration(s.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, _ := runCommand(runCtx, env.Dir, s.Commands.Lint)
	warnings := countLintWarnings(out)

	maxWarnings := s.MaxWarnings
	if maxWarnings <= 0 {
		maxWarnings = 10
	}

	if warnings == 0 {
		return core.StageResult{Name: "lint", Passed: true, Score: 1.0, Details: "no warnings"}
	}
	// Linear degradation from 1.0 (0 warnings) to 0.5 (max warnings).
	ratio := float64(warnings) / float64(maxWarnings)
	if ratio > 1 {
		ratio = 1
	}
	score := 1.0 - 0.5*ratio
	return core.StageResult{
		Name:   "lint",
		Passed: warnings <= maxWarnings,
		Score:  score,
	}
}
