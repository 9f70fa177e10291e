package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask_HasUniqueID(t *testing.T) {
	t.Parallel()
	a := NewTask("add a comment", ComplexityTrivial, PriorityMedium, ActionCreate)
	b := NewTask("add a comment", ComplexityTrivial, PriorityMedium, ActionCreate)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestTask_DependsOn_RejectsSelfReference(t *testing.T) {
	t.Parallel()
	task := NewTask("x", ComplexitySimple, PriorityLow, ActionModify)
	err := task.DependsOn(task.ID)
	require.Error(t, err)
	assert.Equal(t, KindInvalidTask, KindOf(err))
}

func TestTask_DependsOn_RecordsDependency(t *testing.T) {
	t.Parallel()
	dep := NewTask("analyze", ComplexitySimple, PriorityMedium, ActionSearch)
	task := NewTask("apply", ComplexityMedium, PriorityMedium, ActionModify)
	require.NoError(t, task.DependsOn(dep.ID))
	assert.Contains(t, task.DependencyIDs(), dep.ID)
}

func TestContextNeeds_AddFile(t *testing.T) {
	t.Parallel()
	c := NewContextNeeds()
	c.AddFile("main.rs")
	c.AddFile("lib.rs")
	assert.ElementsMatch(t, []string{"main.rs", "lib.rs"}, c.Files())
}

func TestTaskAnalysis_TaskByID(t *testing.T) {
	t.Parallel()
	task := NewTask("x", ComplexityTrivial, PriorityLow, ActionExplain)
	analysis := &TaskAnalysis{Tasks: []*Task{task}, Strategy: StrategySequential}

	found, ok := analysis.TaskByID(task.ID)
	require.True(t, ok)
	assert.Equal(t, task, found)

	_, ok = analysis.TaskByID(NewTaskID())
	assert.False(t, ok)
}

func TestStrategy_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "sequential", StrategySequential.String())
	assert.Equal(t, "parallel", StrategyParallel.String())
	assert.Equal(t, "pipeline", StrategyPipeline.String())
}
