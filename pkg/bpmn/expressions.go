package bpmn

import (
	"fmt"
	"strings"

	"github.com/pbinitiative/feel"
)

// evaluateExpression evaluates a FEEL expression against the given variable
// context. A leading "=" (Camunda-style marker) is stripped before
// evaluation.
func evaluateExpression(expression string, variableContext map[string]any) (any, error) {
	expression = strings.TrimSpace(expression)
	expression = strings.TrimSpace(strings.TrimPrefix(expression, "="))
	if expression == "" {
		return nil, &ExpressionEvaluationError{Msg: "empty expression"}
	}
	result, err := feel.EvalStringWithScope(expression, variableContext)
	if err != nil {
		return nil, &ExpressionEvaluationError{
			Msg: fmt.Sprintf("failed to evaluate expression %q", expression),
			Err: err,
		}
	}
	return result, nil
}

// evaluateBooleanExpression evaluates a flow condition. A non-boolean result
// is an evaluation error, not silently false.
func evaluateBooleanExpression(expression string, variableContext map[string]any) (bool, error) {
	result, err := evaluateExpression(expression, variableContext)
	if err != nil {
		return false, err
	}
	value, ok := result.(bool)
	if !ok {
		return false, &ExpressionEvaluationError{
			Msg: fmt.Sprintf("expression %q did not evaluate to a boolean, got %T", expression, result),
		}
	}
	return value, nil
}
