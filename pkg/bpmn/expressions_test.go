package bpmn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateExpressionResolvesVariables(t *testing.T) {
	result, err := evaluateExpression(`"order-" + ref`, map[string]any{"ref": "42"})
	require.NoError(t, err)
	assert.Equal(t, "order-42", result)
}

func TestEvaluateExpressionStripsEqualSignPrefix(t *testing.T) {
	result, err := evaluateExpression(`= "order-" + ref`, map[string]any{"ref": "42"})
	require.NoError(t, err)
	assert.Equal(t, "order-42", result)
}

func TestEvaluateExpressionWrapsSyntaxError(t *testing.T) {
	_, err := evaluateExpression("sum +", map[string]any{"sum": 41})
	var evalErr *ExpressionEvaluationError
	assert.ErrorAs(t, err, &evalErr)
}

func TestEvaluateBooleanExpression(t *testing.T) {
	result, err := evaluateBooleanExpression("amount > 5", map[string]any{"amount": 10})
	require.NoError(t, err)
	assert.True(t, result)

	result, err = evaluateBooleanExpression("amount > 5", map[string]any{"amount": 3})
	require.NoError(t, err)
	assert.False(t, result)
}

func TestEvaluateBooleanExpressionRejectsNonBooleanResult(t *testing.T) {
	_, err := evaluateBooleanExpression("amount + 5", map[string]any{"amount": 10})
	var evalErr *ExpressionEvaluationError
	assert.ErrorAs(t, err, &evalErr)
}
