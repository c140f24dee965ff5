package bpmn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aTiKhan/processmaker-1/pkg/bpmn/model/bpmn20"
)

func conditionedFlow(id, condition string) bpmn20.TSequenceFlow {
	flow := bpmn20.TSequenceFlow{}
	flow.Id = id
	if condition != "" {
		flow.ConditionExpression = []bpmn20.TExpression{{Text: condition}}
	}
	return flow
}

func noFailure(t *testing.T) expressionFailureHandler {
	return func(expression string, err error) {
		t.Errorf("unexpected expression failure for %q: %v", expression, err)
	}
}

func TestExclusiveSelectionTakesFirstMatchingFlow(t *testing.T) {
	flows := []bpmn20.TSequenceFlow{
		conditionedFlow("a", "x > 10"),
		conditionedFlow("b", "x > 1"),
		conditionedFlow("c", ""),
	}

	selected, err := exclusivelySelectFlow(flows, "", map[string]any{"x": 5}, noFailure(t))
	require.NoError(t, err)
	assert.Equal(t, "b", selected.Id)
}

func TestExclusiveSelectionDeclarationOrderWins(t *testing.T) {
	flows := []bpmn20.TSequenceFlow{
		conditionedFlow("a", "x > 1"),
		conditionedFlow("b", "x > 1"),
	}

	selected, err := exclusivelySelectFlow(flows, "", map[string]any{"x": 5}, noFailure(t))
	require.NoError(t, err)
	assert.Equal(t, "a", selected.Id)
}

func TestExclusiveSelectionFallsBackToDefault(t *testing.T) {
	flows := []bpmn20.TSequenceFlow{
		conditionedFlow("a", "x > 10"),
		conditionedFlow("fallback", ""),
	}

	selected, err := exclusivelySelectFlow(flows, "fallback", map[string]any{"x": 5}, noFailure(t))
	require.NoError(t, err)
	assert.Equal(t, "fallback", selected.Id)
}

func TestExclusiveSelectionSkipsDefaultConditionEvenWhenTrue(t *testing.T) {
	flows := []bpmn20.TSequenceFlow{
		conditionedFlow("default-with-condition", "x > 1"),
		conditionedFlow("a", "x > 10"),
		conditionedFlow("b", ""),
	}

	// the default flow's condition is never evaluated
	selected, err := exclusivelySelectFlow(flows, "default-with-condition",
		map[string]any{"x": 5}, noFailure(t))
	require.NoError(t, err)
	assert.Equal(t, "default-with-condition", selected.Id)
}

func TestExclusiveSelectionFallsBackToUnconditionalFlow(t *testing.T) {
	flows := []bpmn20.TSequenceFlow{
		conditionedFlow("a", "x > 10"),
		conditionedFlow("open", ""),
	}

	selected, err := exclusivelySelectFlow(flows, "", map[string]any{"x": 5}, noFailure(t))
	require.NoError(t, err)
	assert.Equal(t, "open", selected.Id)
}

func TestExclusiveSelectionErrsWhenNothingMatches(t *testing.T) {
	flows := []bpmn20.TSequenceFlow{
		conditionedFlow("a", "x > 10"),
	}

	_, err := exclusivelySelectFlow(flows, "", map[string]any{"x": 5}, noFailure(t))
	assert.Error(t, err)
}

func TestExclusiveSelectionRecoversFromBrokenCondition(t *testing.T) {
	flows := []bpmn20.TSequenceFlow{
		conditionedFlow("broken", "x >"),
		conditionedFlow("a", "x > 1"),
	}

	var failed []string
	selected, err := exclusivelySelectFlow(flows, "", map[string]any{"x": 5},
		func(expression string, err error) {
			failed = append(failed, expression)
		})
	require.NoError(t, err)
	assert.Equal(t, "a", selected.Id)
	assert.Equal(t, []string{"x >"}, failed)
}

func TestInclusiveSelectionTakesAllMatches(t *testing.T) {
	flows := []bpmn20.TSequenceFlow{
		conditionedFlow("a", "x > 1"),
		conditionedFlow("b", "x > 2"),
		conditionedFlow("c", "x > 10"),
		conditionedFlow("open", ""),
	}

	selected, err := inclusivelySelectFlows(flows, "", map[string]any{"x": 5}, noFailure(t))
	require.NoError(t, err)
	require.Len(t, selected, 3)
	assert.Equal(t, "a", selected[0].Id)
	assert.Equal(t, "b", selected[1].Id)
	assert.Equal(t, "open", selected[2].Id)
}

func TestInclusiveSelectionDefaultFiresAlone(t *testing.T) {
	flows := []bpmn20.TSequenceFlow{
		conditionedFlow("a", "x > 10"),
		conditionedFlow("fallback", ""),
	}

	selected, err := inclusivelySelectFlows(flows, "fallback", map[string]any{"x": 5}, noFailure(t))
	require.NoError(t, err)
	require.Len(t, selected, 1)
	assert.Equal(t, "fallback", selected[0].Id)
}

func TestInclusiveSelectionDefaultExcludedWhenOthersMatch(t *testing.T) {
	flows := []bpmn20.TSequenceFlow{
		conditionedFlow("a", "x > 1"),
		conditionedFlow("fallback", ""),
	}

	selected, err := inclusivelySelectFlows(flows, "fallback", map[string]any{"x": 5}, noFailure(t))
	require.NoError(t, err)
	require.Len(t, selected, 1)
	assert.Equal(t, "a", selected[0].Id)
}

func TestOutgoingFlowSelectionKeepsUnconditionalAndMatching(t *testing.T) {
	flows := []bpmn20.TSequenceFlow{
		conditionedFlow("open", ""),
		conditionedFlow("a", "x > 1"),
		conditionedFlow("b", "x > 10"),
	}

	selected, err := selectOutgoingFlows(flows, map[string]any{"x": 5}, noFailure(t))
	require.NoError(t, err)
	require.Len(t, selected, 2)
	assert.Equal(t, "open", selected[0].Id)
	assert.Equal(t, "a", selected[1].Id)
}
