package agentflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateCondition_Comparisons(t *testing.T) {
	snapshot := map[string]any{
		"count":  float64(5),
		"name":   "alpha",
		"active": true,
	}

	tests := []struct {
		expr string
		want bool
	}{
		{"count == 5", true},
		{"count != 5", false},
		{"count > 3", true},
		{"count >= 5", true},
		{"count < 5", false},
		{"count <= 5", true},
		{"name == 'alpha'", true},
		{"name == \"beta\"", false},
		{"name < 'beta'", true},
		{"active == true", true},
		{"count == -5", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := EvaluateCondition(tt.expr, snapshot)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateCondition_Logical(t *testing.T) {
	snapshot := map[string]any{
		"a": true,
		"b": false,
		"n": float64(10),
	}

	tests := []struct {
		expr string
		want bool
	}{
		{"a && b", false},
		{"a || b", true},
		{"!b", true},
		{"!a || b", false},
		{"a && n > 5", true},
		{"(a || b) && n == 10", true},
		{"!(a && b)", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := EvaluateCondition(tt.expr, snapshot)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateCondition_ShortCircuit(t *testing.T) {
	// The right operand references an absent key; short-circuiting must
	// prevent its evaluation.
	snapshot := map[string]any{"flag": false}

	got, err := EvaluateCondition("flag && missing == 1", snapshot)
	require.NoError(t, err)
	assert.False(t, got)

	snapshot["flag"] = true
	got, err = EvaluateCondition("flag || missing == 1", snapshot)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluateCondition_Membership(t *testing.T) {
	snapshot := map[string]any{
		"status": "ready",
		"states": []any{"ready", "running"},
		"ids":    []any{float64(1), float64(2), float64(3)},
	}

	tests := []struct {
		expr string
		want bool
	}{
		{"status in states", true},
		{"'stopped' in states", false},
		{"states includes 'running'", true},
		{"states includes 'stopped'", false},
		{"2 in ids", true},
		{"5 in ids", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := EvaluateCondition(tt.expr, snapshot)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateCondition_Defined(t *testing.T) {
	snapshot := map[string]any{"present": nil}

	got, err := EvaluateCondition("defined(present)", snapshot)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = EvaluateCondition("defined(absent)", snapshot)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = EvaluateCondition("defined(absent) && absent == 1", snapshot)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvaluateCondition_NumericCoercion(t *testing.T) {
	// Agents may write int values; comparisons treat them as numbers
	snapshot := map[string]any{"count": 5}

	got, err := EvaluateCondition("count == 5", snapshot)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = EvaluateCondition("count < 5.5", snapshot)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluateCondition_MissingKey(t *testing.T) {
	_, err := EvaluateCondition("missing == 1", map[string]any{})
	require.Error(t, err)

	var evalErr *EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Contains(t, evalErr.Reason, "missing")
}

func TestEvaluateCondition_MalformedExpressions(t *testing.T) {
	snapshot := map[string]any{"a": true}

	exprs := []string{
		"",
		"   ",
		"a &&",
		"a = true",
		"a && (b",
		"'unterminated",
		"a ==",
		"a true",
		"defined a",
		"1 @ 2",
	}

	for _, expr := range exprs {
		t.Run(expr, func(t *testing.T) {
			_, err := EvaluateCondition(expr, snapshot)
			require.Error(t, err)

			var evalErr *EvaluationError
			assert.ErrorAs(t, err, &evalErr)
		})
	}
}

func TestEvaluateCondition_NonBooleanResult(t *testing.T) {
	_, err := EvaluateCondition("count", map[string]any{"count": float64(5)})
	require.Error(t, err)

	var evalErr *EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Contains(t, evalErr.Reason, "not boolean")
}

func TestEvaluateCondition_TypeErrors(t *testing.T) {
	snapshot := map[string]any{
		"name":  "alpha",
		"count": float64(5),
	}

	exprs := []string{
		"name > 5",
		"count < 'beta'",
		"name && count == 5",
		"!name",
		"5 in count",
	}

	for _, expr := range exprs {
		t.Run(expr, func(t *testing.T) {
			_, err := EvaluateCondition(expr, snapshot)
			require.Error(t, err)
		})
	}
}

func TestEvaluateCondition_NullLiteral(t *testing.T) {
	snapshot := map[string]any{"value": nil}

	got, err := EvaluateCondition("value == null", snapshot)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = EvaluateCondition("value != null", snapshot)
	require.NoError(t, err)
	assert.False(t, got)
}
