package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/merlin/internal/core"
)

func withFiles(paths ...string) *core.Task {
	t := core.NewTask("touch files", core.ComplexitySimple, core.PriorityMedium, core.ActionModify)
	for _, p := range paths {
		t.ContextNeeds.AddFile(p)
	}
	return t
}

func TestReadyNonConflictingTasks_DisjointFilesBothAdmitted(t *testing.T) {
	t.Parallel()
	a := withFiles("a.rs")
	b := withFiles("b.rs")
	g, err := FromTasks([]*core.Task{a, b})
	require.NoError(t, err)
	cag := NewConflictAware(g)

	ready := cag.ReadyNonConflictingTasks(nil, nil)
	assert.Len(t, ready, 2)
}

func TestReadyNonConflictingTasks_OverlapWithRunningExcluded(t *testing.T) {
	t.Parallel()
	a := withFiles("shared.rs")
	b := withFiles("shared.rs")
	g, err := FromTasks([]*core.Task{a, b})
	require.NoError(t, err)
	cag := NewConflictAware(g)

	running := map[core.TaskID]bool{a.ID: true}
	ready := cag.ReadyNonConflictingTasks(nil, running)
	require.Len(t, ready, 0, "b conflicts with running task a on shared.rs")
}

func TestReadyNonConflictingTasks_OverlapWithinRoundExcludesSecond(t *testing.T) {
	t.Parallel()
	a := withFiles("shared.rs")
	b := withFiles("shared.rs")
	g, err := FromTasks([]*core.Task{a, b})
	require.NoError(t, err)
	cag := NewConflictAware(g)

	ready := cag.ReadyNonConflictingTasks(nil, nil)
	require.Len(t, ready, 1, "only the first task by insertion order is admitted")
	assert.Equal(t, a.ID, ready[0].ID)
}

func TestReadyNonConflictingTasks_DeterministicOrder(t *testing.T) {
	t.Parallel()
	a := withFiles("a.rs")
	b := withFiles("b.rs")
	c := withFiles("c.rs")
	g, err := FromTasks([]*core.Task{a, b, c})
	require.NoError(t, err)
	cag := NewConflictAware(g)

	ready := cag.ReadyNonConflictingTasks(nil, nil)
	require.Len(t, ready, 3)
	assert.Equal(t, []core.TaskID{a.ID, b.ID, c.ID}, []core.TaskID{ready[0].ID, ready[1].ID, ready[2].ID})
}
