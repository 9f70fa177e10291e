// Package graph represents the task dependency DAG produced by the
// analyzer and answers readiness queries for the executor pool.
package graph

import (
	"github.com/hugo-lorenzo-mato/merlin/internal/core"
)

// TaskGraph is an immutable directed graph over a TaskAnalysis's tasks, one
// node per task and one edge dep -> task for every declared dependency.
type TaskGraph struct {
	tasks  map[core.TaskID]*core.Task
	edges  map[core.TaskID][]core.TaskID // task -> its dependencies
	order  []core.TaskID                 // insertion order, for deterministic tie-breaks
	index  map[core.TaskID]int           // insertion index, for deterministic tie-breaks
}

// FromTasks builds a TaskGraph from a flat task list. It fails with
// KindInvalidTask if any dependency refers to an unknown task id.
func FromTasks(tasks []*core.Task) (*TaskGraph, error) {
	g := &TaskGraph{
		tasks: make(map[core.TaskID]*core.Task, len(tasks)),
		edges: make(map[core.TaskID][]core.TaskID, len(tasks)),
		order: make([]core.TaskID, 0, len(tasks)),
		index: make(map[core.TaskID]int, len(tasks)),
	}
	for i, t := range tasks {
		g.tasks[t.ID] = t
		g.order = append(g.order, t.ID)
		g.index[t.ID] = i
	}
	for _, t := range tasks {
		for _, dep := range t.DependencyIDs() {
			if _, ok := g.tasks[dep]; !ok {
				return nil, core.NewError(core.KindInvalidTask, "task "+string(t.ID)+" depends on unknown task "+string(dep))
			}
			g.edges[t.ID] = append(g.edges[t.ID], dep)
		}
	}
	return g, nil
}

// Tasks returns the graph's tasks in the original insertion order — a
// permutation of the TaskAnalysis.Tasks that built it.
func (g *TaskGraph) Tasks() []*core.Task {
	out := make([]*core.Task, len(g.order))
	for i, id := range g.order {
		out[i] = g.tasks[id]
	}
	return out
}

// Task looks up a single task by id.
func (g *TaskGraph) Task(id core.TaskID) (*core.Task, bool) {
	t, ok := g.tasks[id]
	return t, ok
}

// HasCycles reports whether the dependency graph contains a cycle,
// detected via DFS with a recursion stack.
func (g *TaskGraph) HasCycles() bool {
	visited := make(map[core.TaskID]bool, len(g.tasks))
	onStack := make(map[core.TaskID]bool, len(g.tasks))

	var visit func(id core.TaskID) bool
	visit = func(id core.TaskID) bool {
		visited[id] = true
		onStack[id] = true
		for _, dep := range g.edges[id] {
			if !visited[dep] {
				if visit(dep) {
					return true
				}
			} else if onStack[dep] {
				return true
			}
		}
		onStack[id] = false
		return false
	}

	for id := range g.tasks {
		if !visited[id] {
			if visit(id) {
				return true
			}
		}
	}
	return false
}

// ReadyTasks returns the tasks not yet in completed whose every dependency
// is in completed, in stable insertion order.
func (g *TaskGraph) ReadyTasks(completed map[core.TaskID]bool) []*core.Task {
	ready := make([]*core.Task, 0)
	for _, id := range g.order {
		if completed[id] {
			continue
		}
		if g.depsSatisfied(id, completed) {
			ready = append(ready, g.tasks[id])
		}
	}
	return ready
}

func (g *TaskGraph) depsSatisfied(id core.TaskID, completed map[core.TaskID]bool) bool {
	for _, dep := range g.edges[id] {
		if !completed[dep] {
			return false
		}
	}
	return true
}

// IsComplete reports whether every task in the graph is in completed.
func (g *TaskGraph) IsComplete(completed map[core.TaskID]bool) bool {
	for id := range g.tasks {
		if !completed[id] {
			return false
		}
	}
	return true
}

// Len returns the number of tasks in the graph.
func (g *TaskGraph) Len() int { return len(g.tasks) }

// InsertionIndex returns the stable tie-break index for a task id, used by
// the conflict-aware variant to keep admission deterministic under test.
func (g *TaskGraph) InsertionIndex(id core.TaskID) int { return g.index[id] }
