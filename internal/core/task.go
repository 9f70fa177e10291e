// Package core defines the orchestration core's shared domain model: tasks,
// the task graph they form, model tiers, routing decisions, and the
// taxonomy of errors the rest of the core reasons about.
package core

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// TaskID is an opaque, globally unique identifier for a Task within a
// process. It is created once at Task construction and never reassigned.
type TaskID string

// NewTaskID generates a fresh TaskID backed by a random UUID.
func NewTaskID() TaskID {
	return TaskID(uuid.NewString())
}

// Complexity is a coarse estimate of how much work a task requires.
type Complexity string

const (
	ComplexityTrivial Complexity = "trivial"
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// Priority governs routing preference: higher priority tasks are steered
// toward stronger tiers regardless of cost.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Action classifies what kind of change a task is expected to perform.
type Action string

const (
	ActionCreate   Action = "create"
	ActionModify   Action = "modify"
	ActionDebug    Action = "debug"
	ActionExplain  Action = "explain"
	ActionRefactor Action = "refactor"
	ActionSearch   Action = "search"
)

// ContextNeeds captures what a task needs pulled into its provider prompt.
type ContextNeeds struct {
	RequiredFiles       map[string]struct{}
	EstimatedTokens      uint32
	RequiresFullContext bool
}

// NewContextNeeds returns an empty ContextNeeds with an initialized file set.
func NewContextNeeds() ContextNeeds {
	return ContextNeeds{RequiredFiles: make(map[string]struct{})}
}

// AddFile records a required file path.
func (c *ContextNeeds) AddFile(path string) {
	if c.RequiredFiles == nil {
		c.RequiredFiles = make(map[string]struct{})
	}
	c.RequiredFiles[path] = struct{}{}
}

// Files returns the required file paths as a slice, sorted for determinism.
func (c ContextNeeds) Files() []string {
	out := make([]string, 0, len(c.RequiredFiles))
	for p := range c.RequiredFiles {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Task is a single unit of work produced by the Analyzer. It is immutable
// once constructed: Dependencies, ContextNeeds and Action never change
// after analysis, matching spec.md §3's "immutable once analyzed"
// invariant. Execution-time state (status, retries, timing) lives
// alongside it in the executor, not on this type.
type Task struct {
	ID           TaskID
	Description  string
	Complexity   Complexity
	Priority     Priority
	Dependencies map[TaskID]struct{}
	ContextNeeds ContextNeeds
	Action       Action
}

// NewTask constructs a Task with a fresh TaskID.
func NewTask(description string, complexity Complexity, priority Priority, action Action) *Task {
	return &Task{
		ID:           NewTaskID(),
		Description:  description,
		Complexity:   complexity,
		Priority:     priority,
		Dependencies: make(map[TaskID]struct{}),
		ContextNeeds: NewContextNeeds(),
		Action:       action,
	}
}

// DependsOn records a dependency on another task. Self-references are
// rejected to preserve the "no self-reference" invariant.
func (t *Task) DependsOn(id TaskID) error {
	if id == t.ID {
		return NewError(KindInvalidTask, fmt.Sprintf("task %s cannot depend on itself", t.ID))
	}
	t.Dependencies[id] = struct{}{}
	return nil
}

// DependencyIDs returns the task's dependencies as a slice.
func (t *Task) DependencyIDs() []TaskID {
	out := make([]TaskID, 0, len(t.Dependencies))
	for id := range t.Dependencies {
		out = append(out, id)
	}
	return out
}

// Strategy selects how an analysis's tasks should be scheduled.
type Strategy int

const (
	StrategySequential Strategy = iota
	StrategyParallel
	StrategyPipeline
)

func (s Strategy) String() string {
	switch s {
	case StrategySequential:
		return "sequential"
	case StrategyParallel:
		return "parallel"
	case StrategyPipeline:
		return "pipeline"
	default:
		return "unknown"
	}
}

// TaskAnalysis is the immutable output of the Analyzer: an ordered list of
// tasks, owned exclusively by this analysis, plus the scheduling strategy
// the executor should use to run them.
type TaskAnalysis struct {
	Tasks         []*Task
	Strategy      Strategy
	MaxConcurrent int // only meaningful when Strategy == StrategyParallel
}

// TaskByID looks up a task within this analysis by ID.
func (a *TaskAnalysis) TaskByID(id TaskID) (*Task, bool) {
	for _, t := range a.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}
