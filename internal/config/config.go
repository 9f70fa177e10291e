// Package config loads and validates merlin's layered runtime configuration:
// tier routing, validation pipeline, execution, and workspace settings.
package config

// Config holds the orchestration core's full runtime configuration.
type Config struct {
	Tiers      TiersConfig      `mapstructure:"tiers"`
	Validation ValidationConfig `mapstructure:"validation"`
	Execution  ExecutionConfig  `mapstructure:"execution"`
	Workspace  WorkspaceConfig  `mapstructure:"workspace"`
}

// TiersConfig configures the three model tiers and their shared retry/timeout
// policy.
type TiersConfig struct {
	LocalEnabled    bool   `mapstructure:"local_enabled"`
	LocalModel      string `mapstructure:"local_model"`
	MidEnabled      bool   `mapstructure:"mid_enabled"`
	MidModel        string `mapstructure:"mid_model"`
	PremiumEnabled  bool   `mapstructure:"premium_enabled"`
	PremiumProvider string `mapstructure:"premium_provider"`
	PremiumModel    string `mapstructure:"premium_model"`
	MaxRetries      int    `mapstructure:"max_retries"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
}

// ValidationConfig configures the Syntax/Build/Test/Lint pipeline.
type ValidationConfig struct {
	Enabled             bool    `mapstructure:"enabled"`
	EarlyExit           bool    `mapstructure:"early_exit"`
	SyntaxCheck         bool    `mapstructure:"syntax_check"`
	BuildCheck          bool    `mapstructure:"build_check"`
	TestCheck           bool    `mapstructure:"test_check"`
	LintCheck           bool    `mapstructure:"lint_check"`
	BuildTimeoutSeconds int     `mapstructure:"build_timeout_seconds"`
	TestTimeoutSeconds  int     `mapstructure:"test_timeout_seconds"`
	Threshold           float64 `mapstructure:"threshold"`
	MaxLintWarnings     int     `mapstructure:"max_lint_warnings"`
}

// ExecutionConfig configures the executor pool's scheduling policy.
type ExecutionConfig struct {
	MaxConcurrentTasks       int  `mapstructure:"max_concurrent_tasks"`
	EnableParallel           bool `mapstructure:"enable_parallel"`
	EnableConflictDetection  bool `mapstructure:"enable_conflict_detection"`
	EnableFileLocking        bool `mapstructure:"enable_file_locking"`
	MaxConflictRetries       int  `mapstructure:"max_conflict_retries"`
}

// WorkspaceConfig configures workspace materialization and snapshotting.
type WorkspaceConfig struct {
	RootPath           string `mapstructure:"root_path"`
	EnableSnapshots    bool   `mapstructure:"enable_snapshots"`
	EnableTransactions bool   `mapstructure:"enable_transactions"`
}

// DefaultConfigTOML is written by `merlin init` to scaffold a new project's
// config.toml, mirroring spec.md §6's example verbatim.
const DefaultConfigTOML = `[tiers]
local_enabled   = true
local_model     = "qwen2.5-coder:7b"
mid_enabled     = true
mid_model       = "llama-3.1-70b-versatile"
premium_enabled = true
max_retries     = 3
timeout_seconds = 300

[validation]
enabled              = true
early_exit           = true
syntax_check         = true
build_check          = true
test_check           = true
lint_check           = true
build_timeout_seconds = 60
test_timeout_seconds  = 300

[execution]
max_concurrent_tasks       = 4
enable_parallel            = true
enable_conflict_detection  = true
enable_file_locking        = true

[workspace]
root_path            = "."
enable_snapshots     = true
enable_transactions  = true
`
