package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowforge/orchestrator/pkg/workflow"
)

func TestUpdateBreakdownMarksMatchingComponentComplete(t *testing.T) {
	breakdown := []workflow.Component{
		{ID: "collect", Type: workflow.ComponentDataCollection, Target: "@alice"},
		{ID: "report", Type: workflow.ComponentOutput},
	}
	step := workflow.Step{
		Index:     2,
		Status:    workflow.StepCompleted,
		Action:    "get_user_tweets",
		Reasoning: "fetching recent tweets for @alice",
	}

	updateBreakdown(breakdown, step, `{"tweets": ["hello", "world"]}`)

	assert.True(t, breakdown[0].IsCompleted)
	assert.Equal(t, []int{2}, breakdown[0].CompletedStepIndices)
	assert.False(t, breakdown[1].IsCompleted)
}

func TestUpdateBreakdownSkipsWrongTarget(t *testing.T) {
	breakdown := []workflow.Component{
		{ID: "collect", Type: workflow.ComponentDataCollection, Target: "@bob"},
	}
	step := workflow.Step{
		Index:     1,
		Status:    workflow.StepCompleted,
		Action:    "get_user_tweets",
		Reasoning: "fetching recent tweets for @alice",
	}

	updateBreakdown(breakdown, step, `{"tweets": ["hi"]}`)

	assert.False(t, breakdown[0].IsCompleted)
}

func TestUpdateBreakdownIgnoresFailedStep(t *testing.T) {
	breakdown := []workflow.Component{{ID: "collect", Type: workflow.ComponentDataCollection}}
	step := workflow.Step{Index: 1, Status: workflow.StepFailed, Action: "get_user_tweets"}

	updateBreakdown(breakdown, step, `{"tweets": ["hi"]}`)

	assert.False(t, breakdown[0].IsCompleted)
}

func TestUpdateBreakdownIgnoresEmbeddedErrorResult(t *testing.T) {
	breakdown := []workflow.Component{{ID: "collect", Type: workflow.ComponentDataCollection}}
	step := workflow.Step{Index: 1, Status: workflow.StepCompleted, Action: "get_user_tweets"}

	updateBreakdown(breakdown, step, `{"error": "rate limited"}`)

	assert.False(t, breakdown[0].IsCompleted)
}

func TestHasMeaningfulData(t *testing.T) {
	assert.True(t, hasMeaningfulData(`{"ok": true}`))
	assert.False(t, hasMeaningfulData(""))
	assert.False(t, hasMeaningfulData("   "))
	assert.False(t, hasMeaningfulData(`{"error": "nope"}`))
}

func TestInferArgKey(t *testing.T) {
	assert.Equal(t, "content", inferArgKey("post_tweet"))
	assert.Equal(t, "query", inferArgKey("search_users"))
	assert.Equal(t, "id", inferArgKey("get_user"))
	assert.Equal(t, "input", inferArgKey("do_something_unrelated"))
}
