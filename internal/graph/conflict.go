package graph

import (
	"sort"

	"github.com/hugo-lorenzo-mato/merlin/internal/core"
)

// ConflictAwareTaskGraph wraps a TaskGraph with a file-access map so the
// executor pool can restrict the ready set to tasks that don't touch a
// path already claimed by a running task.
type ConflictAwareTaskGraph struct {
	*TaskGraph
	fileAccess map[string][]core.TaskID // path -> task ids that declare it
}

// NewConflictAware builds a ConflictAwareTaskGraph from an existing
// TaskGraph, indexing each task's required files.
func NewConflictAware(g *TaskGraph) *ConflictAwareTaskGraph {
	cag := &ConflictAwareTaskGraph{
		TaskGraph:  g,
		fileAccess: make(map[string][]core.TaskID),
	}
	for _, t := range g.Tasks() {
		for _, path := range t.ContextNeeds.Files() {
			cag.fileAccess[path] = append(cag.fileAccess[path], t.ID)
		}
	}
	return cag
}

// ReadyNonConflictingTasks filters the DAG-ready set down to tasks whose
// required files don't overlap with any task currently in running. Ties
// (two otherwise-ready tasks) are broken by stable insertion order so
// results are deterministic across runs.
func (g *ConflictAwareTaskGraph) ReadyNonConflictingTasks(completed, running map[core.TaskID]bool) []*core.Task {
	ready := g.TaskGraph.ReadyTasks(completed)

	runningFiles := make(map[string]bool)
	for id := range running {
		t, ok := g.TaskGraph.Task(id)
		if !ok {
			continue
		}
		for _, path := range t.ContextNeeds.Files() {
			runningFiles[path] = true
		}
	}

	admissible := make([]*core.Task, 0, len(ready))
	claimed := make(map[string]bool)
	for _, t := range ready {
		if conflicts(t, runningFiles, claimed) {
			continue
		}
		admissible = append(admissible, t)
		for _, path := range t.ContextNeeds.Files() {
			claimed[path] = true
		}
	}

	sort.SliceStable(admissible, func(i, j int) bool {
		return g.InsertionIndex(admissible[i].ID) < g.InsertionIndex(admissible[j].ID)
	})
	return admissible
}

// conflicts reports whether t declares any file already claimed by a
// running task, or by an earlier task admitted in this same round.
func conflicts(t *core.Task, runningFiles, claimedThisRound map[string]bool) bool {
	for _, path := range t.ContextNeeds.Files() {
		if runningFiles[path] || claimedThisRound[path] {
			return true
		}
	}
	return false
}
