package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowforge/orchestrator/pkg/auth"
	"github.com/flowforge/orchestrator/pkg/workflow"
)

func TestClassifyErrorAuth(t *testing.T) {
	err := &auth.ErrMissingAuth{Service: "github", MissingKeys: []string{"token"}}
	assert.Equal(t, classAuth, classifyError(err))
}

func TestClassifyErrorConnection(t *testing.T) {
	assert.Equal(t, classConnection, classifyError(errors.New("connection closed unexpectedly")))
	assert.Equal(t, classConnection, classifyError(errors.New("broken pipe")))
}

func TestClassifyErrorTimeout(t *testing.T) {
	assert.Equal(t, classTimeout, classifyError(errors.New("context deadline exceeded")))
}

func TestClassifyErrorProtocol(t *testing.T) {
	assert.Equal(t, classProtocol, classifyError(errors.New("unknown tool requested")))
}

func TestClassifyErrorToolReported(t *testing.T) {
	assert.Equal(t, classToolReported, classifyError(errors.New("tool returned an error: bad input")))
}

func TestClassifyErrorUnknown(t *testing.T) {
	assert.Equal(t, classUnknown, classifyError(errors.New("something went sideways")))
}

func TestSelectStrategyAuthAlwaysManualIntervention(t *testing.T) {
	assert.Equal(t, workflow.StrategyManualIntervention, selectStrategy(classAuth, 1, true))
}

func TestSelectStrategyConnectionAlwaysSkip(t *testing.T) {
	assert.Equal(t, workflow.StrategySkip, selectStrategy(classConnection, 1, true))
}

func TestSelectStrategyTimeoutRetriesThenSkips(t *testing.T) {
	assert.Equal(t, workflow.StrategyRetry, selectStrategy(classTimeout, 1, true))
	assert.Equal(t, workflow.StrategySkip, selectStrategy(classTimeout, 2, false))
}

func TestSelectStrategyToolReportedRetriesOnceThenAlternative(t *testing.T) {
	assert.Equal(t, workflow.StrategyRetry, selectStrategy(classToolReported, 1, true))
	assert.Equal(t, workflow.StrategyAlternative, selectStrategy(classToolReported, 2, false))
}

func TestSelectStrategyUnknownEscalates(t *testing.T) {
	assert.Equal(t, workflow.StrategyRetry, selectStrategy(classUnknown, 1, true))
	assert.Equal(t, workflow.StrategyAlternative, selectStrategy(classUnknown, 2, false))
	assert.Equal(t, workflow.StrategySkip, selectStrategy(classUnknown, 5, false))
}
