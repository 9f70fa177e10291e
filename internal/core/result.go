package core

import "time"

// Response is the normalized output of a ModelProvider.generate call.
type Response struct {
	Text         string
	Confidence   float64 // in [0, 1]
	Tokens       int
	LatencyMS    int64
	ProviderName string
	Changes      []FileChange
}

// TaskResult is written exactly once per successfully completed task.
type TaskResult struct {
	TaskID     TaskID
	Response   Response
	TierUsed   ModelTier
	TokensUsed int
	Validation ValidationResult
	DurationMS int64
	WorkUnitID string // optional link back into the persisted thread, if any
}

// StageResult is the outcome of a single validator pipeline stage.
type StageResult struct {
	Name    string
	Passed  bool
	Score   float64 // in [0, 1]
	Details string
	Errors  []string
}

// ValidationResult is the aggregate outcome of the validator pipeline.
// Passed holds iff every stage passed and the multiplicative score meets
// the configured threshold (spec.md §3).
type ValidationResult struct {
	Passed   bool
	Score    float64
	Errors   []string
	Warnings []string
	Stages   []StageResult
}

// Recompute derives Score and Passed from Stages against threshold. Callers
// that assemble a ValidationResult stage-by-stage should call this once all
// stages have run (or once early-exit halts the pipeline).
func (v *ValidationResult) Recompute(threshold float64) {
	score := 1.0
	allPassed := true
	for _, s := range v.Stages {
		score *= s.Score
		if !s.Passed {
			allPassed = false
		}
		v.Errors = append(v.Errors, s.Errors...)
	}
	v.Score = score
	v.Passed = allPassed && score >= threshold
}

// FileChangeKind tags which variant a FileChange carries.
type FileChangeKind string

const (
	FileChangeCreate FileChangeKind = "create"
	FileChangeModify FileChangeKind = "modify"
	FileChangeDelete FileChangeKind = "delete"
)

// FileChange is a single file mutation proposed by a provider response.
type FileChange struct {
	Kind    FileChangeKind
	Path    string
	Content string // unused for Delete
}

// CreateFile constructs a Create FileChange.
func CreateFile(path, content string) FileChange {
	return FileChange{Kind: FileChangeCreate, Path: path, Content: content}
}

// ModifyFile constructs a Modify FileChange.
func ModifyFile(path, content string) FileChange {
	return FileChange{Kind: FileChangeModify, Path: path, Content: content}
}

// DeleteFile constructs a Delete FileChange.
func DeleteFile(path string) FileChange {
	return FileChange{Kind: FileChangeDelete, Path: path}
}

// TouchesSource reports whether any change plausibly touches buildable
// source (used to decide whether the Build/Test/Lint stages should run
// at all, per spec.md §4.6 "Skip rules").
func TouchesSource(changes []FileChange) bool {
	return len(changes) > 0
}

// TaskStatus is the executor's view of a task's lifecycle, per the finite
// state machine in spec.md §4.4.
type TaskStatus string

const (
	StatusQueued     TaskStatus = "queued"
	StatusWaiting    TaskStatus = "waiting"
	StatusRunning    TaskStatus = "running"
	StatusValidating TaskStatus = "validating"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
	StatusRetrying   TaskStatus = "retrying"
	StatusEscalating TaskStatus = "escalating"
	StatusSkipped    TaskStatus = "skipped"
)

// SkippedResult records a task that was never executed because an upstream
// dependency failed terminally.
type SkippedResult struct {
	TaskID     TaskID
	UpstreamID TaskID
	At         time.Time
}

// NewSkippedResult constructs a SkippedResult for taskID, whose dependency
// upstreamID failed terminally.
func NewSkippedResult(taskID, upstreamID TaskID) SkippedResult {
	return SkippedResult{TaskID: taskID, UpstreamID: upstreamID, At: time.Now()}
}

// TaskOutcome is the executor pool's per-task entry in its result stream:
// exactly one of Result (completed), Err (failed terminally), or Skipped
// (an upstream dependency failed) is set, per spec.md §7's
// "|results| = |tasks|, including Skipped" invariant.
type TaskOutcome struct {
	TaskID  TaskID
	Result  *TaskResult
	Skipped *SkippedResult
	Err     error
}

// Status reports which of the three outcome variants this entry holds.
func (o TaskOutcome) Status() TaskStatus {
	switch {
	case o.Result != nil:
		return StatusCompleted
	case o.Skipped != nil:
		return StatusSkipped
	default:
		return StatusFailed
	}
}
