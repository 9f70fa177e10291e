package validator

import (
	"context"

	"github.com/hugo-lorenzo-mato/merlin/internal/core"
	"github.com/hugo-lorenzo-mato/merlin/internal/workspace"
)

// Pipeline runs the fixed Syntax/Build/Test/Lint stage sequence.
type Pipeline struct {
	stages        []Stage
	earlyExit     bool
	threshold     float64
	workspaceRoot string
}

// Config mirrors config.ValidationConfig's fields the pipeline needs,
// decoupled from the config package to keep validator import-independent.
type Config struct {
	Enabled             bool
	EarlyExit           bool
	SyntaxCheck         bool
	BuildCheck          bool
	TestCheck           bool
	LintCheck           bool
	BuildTimeoutSeconds int
	TestTimeoutSeconds  int
	Threshold           float64
	MaxLintWarnings     int
	Commands            Commands
	WorkspaceRoot       string
}

// New builds a Pipeline from cfg, including only the stages cfg enables.
func New(cfg Config) *Pipeline {
	var stages []Stage
	if cfg.SyntaxCheck {
		stages = append(stages, SyntaxStage{})
	}
	if cfg.BuildCheck {
		stages = append(stages, BuildStage{Commands: cfg.Commands, TimeoutSeconds: cfg.BuildTimeoutSeconds})
	}
	if cfg.TestCheck {
		stages = append(stages, TestStage{Commands: cfg.Commands, TimeoutSeconds: cfg.TestTimeoutSeconds, MinPassRate: 1.0})
	}
	if cfg.LintCheck {
		stages = append(stages, LintStage{Commands: cfg.Commands, MaxWarnings: cfg.MaxLintWarnings, TimeoutSeconds: cfg.BuildTimeoutSeconds})
	}

	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = 0.8
	}
	return &Pipeline{stages: stages, earlyExit: cfg.EarlyExit, threshold: threshold, workspaceRoot: cfg.WorkspaceRoot}
}

// Validate runs every enabled stage against response/task in order. If
// requiresBuildCheck holds, snap materializes an IsolatedBuildEnv shared by
// the Build/Test/Lint stages; snap may be nil when no build-dependent stage
// is enabled.
func (p *Pipeline) Validate(ctx context.Context, response core.Response, task *core.Task, snap *workspace.Snapshot) core.ValidationResult {
	var env *BuildEnv
	if snap != nil && requiresBuildCheck(task, response) {
		if e, err := NewBuildEnv(p.workspaceRoot, snap); err == nil {
			env = e
			defer e.Close()
		}
	}

	result := core.ValidationResult{}
	for _, stage := range p.stages {
		sr := stage.Run(ctx, response, task, env)
		result.Stages = append(result.Stages, sr)
		if p.earlyExit && !sr.Passed {
			break
		}
	}
	result.Recompute(p.threshold)
	return result
}
