package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/orchestrator/pkg/complexity"
	"github.com/flowforge/orchestrator/pkg/workflow"
)

func TestStateCurrentStepAndAdvance(t *testing.T) {
	steps := []workflow.Step{{Index: 1}, {Index: 2}}
	s := newState("q", steps, nil, complexity.ClassSimpleQuery, 5)

	step, ok := s.currentStep()
	require.True(t, ok)
	assert.Equal(t, 1, step.Index)

	s.advance()
	step, ok = s.currentStep()
	require.True(t, ok)
	assert.Equal(t, 2, step.Index)

	s.advance()
	_, ok = s.currentStep()
	assert.False(t, ok)
}

func TestStateSetResultStoresLastResult(t *testing.T) {
	s := newState("q", []workflow.Step{{Index: 1}}, nil, complexity.ClassSimpleQuery, 5)
	s.setResult(1, "hello")
	assert.Equal(t, "hello", s.DataStore["step_1_result"])
	assert.Equal(t, "hello", s.DataStore["last_result"])
}

func TestStateReplaceTailRenumbersDensely(t *testing.T) {
	steps := []workflow.Step{
		{Index: 1, MCPName: "a"},
		{Index: 2, MCPName: "b"},
		{Index: 3, MCPName: "c"},
	}
	s := newState("q", steps, nil, complexity.ClassMediumTask, 10)
	s.next = 1 // current step is index 2 (position 1)

	adapted := []workflow.Step{
		{MCPName: "x", Action: "one"},
		{MCPName: "y", Action: "two"},
	}
	s.replaceTail(adapted)

	require.Len(t, s.Workflow, 4)
	assert.Equal(t, 1, s.Workflow[0].Index)
	assert.Equal(t, 2, s.Workflow[1].Index)
	assert.Equal(t, 3, s.Workflow[2].Index)
	assert.Equal(t, "x", s.Workflow[2].MCPName)
	assert.Equal(t, 4, s.Workflow[3].Index)
	assert.Equal(t, "y", s.Workflow[3].MCPName)
	assert.Equal(t, workflow.StepPending, s.Workflow[2].Status)
}

func TestStatePendingCount(t *testing.T) {
	steps := []workflow.Step{{Index: 1}, {Index: 2}, {Index: 3}}
	s := newState("q", steps, nil, complexity.ClassSimpleQuery, 5)
	s.CompletedCount = 1
	s.FailedCount = 1
	assert.Equal(t, 1, s.pendingCount())
}
