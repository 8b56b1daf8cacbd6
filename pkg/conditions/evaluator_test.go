package conditions_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/dukex/autoflow/pkg/conditions"
	"github.com/dukex/autoflow/pkg/template"
	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		operator string
		expected any
		actual   any
		want     bool
	}{
		{name: "greater than", operator: "greater_than", expected: 100, actual: 150, want: true},
		{name: "greater than smaller", operator: "greater_than", expected: 100, actual: 50, want: false},
		{name: "greater than equal", operator: "greater_than", expected: 100, actual: 100, want: false},
		{name: "greater than numeric strings", operator: "greater_than", expected: "100", actual: "150.5", want: true},
		{name: "greater than non numeric", operator: "greater_than", expected: 100, actual: "lots", want: false},
		{name: "greater than undefined", operator: "greater_than", expected: -1, actual: template.Undefined, want: false},
		{name: "greater than nil is zero", operator: "greater_than", expected: -1, actual: nil, want: true},
		{name: "less than", operator: "less_than", expected: 10, actual: 9.99, want: true},
		{name: "less than equal", operator: "less_than", expected: 10, actual: 10, want: false},
		{name: "less than bool coerces", operator: "less_than", expected: 2, actual: true, want: true},
		{name: "contains", operator: "contains", expected: "error", actual: "An error occurred", want: true},
		{name: "contains missing", operator: "contains", expected: "error", actual: "All good", want: false},
		{name: "contains nil", operator: "contains", expected: "test", actual: nil, want: false},
		{name: "contains undefined", operator: "contains", expected: "test", actual: template.Undefined, want: false},
		{name: "contains number", operator: "contains", expected: 50, actual: 1500, want: true},
		{name: "contains nil expected", operator: "contains", expected: nil, actual: "anything", want: false},
		{name: "contains nil expected in text", operator: "contains", expected: nil, actual: "value is null", want: true},
		{name: "contains undefined expected", operator: "contains", expected: template.Undefined, actual: "anything", want: false},
		{name: "contains list", operator: "contains", expected: "vip", actual: []any{"new", "vip"}, want: true},
		{name: "equals strings", operator: "equals", expected: "completed", actual: "completed", want: true},
		{name: "equals numbers across kinds", operator: "equals", expected: 100, actual: float64(100), want: true},
		{name: "equals json number", operator: "equals", expected: json.Number("100"), actual: 100, want: true},
		{name: "greater than json number", operator: "greater_than", expected: 100, actual: json.Number("150.5"), want: true},
		{name: "equals is strict", operator: "equals", expected: "100", actual: float64(100), want: false},
		{name: "equals bools", operator: "equals", expected: true, actual: true, want: true},
		{name: "equals nil nil", operator: "equals", expected: nil, actual: nil, want: true},
		{name: "equals nil undefined", operator: "equals", expected: nil, actual: template.Undefined, want: false},
		{name: "equals maps", operator: "equals", expected: map[string]any{}, actual: map[string]any{}, want: false},
		{name: "not equals", operator: "not_equals", expected: "completed", actual: "scheduled", want: true},
		{name: "not equals same", operator: "not_equals", expected: "completed", actual: "completed", want: false},
		{name: "not equals strict", operator: "not_equals", expected: "1", actual: 1, want: true},
		{name: "unknown operator", operator: "matches", expected: "a", actual: "a", want: false},
		{name: "empty operator", operator: "", expected: "a", actual: "a", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, conditions.Evaluate(tt.operator, tt.expected, tt.actual))
		})
	}
}

func TestToNumber(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 12.0, conditions.ToNumber(" 12 "), 0)
	assert.InDelta(t, 0.0, conditions.ToNumber(""), 0)
	assert.InDelta(t, 0.0, conditions.ToNumber(nil), 0)
	assert.InDelta(t, 1.0, conditions.ToNumber(true), 0)
	assert.InDelta(t, 3.0, conditions.ToNumber(int64(3)), 0)
	assert.True(t, math.IsNaN(conditions.ToNumber("abc")))
	assert.True(t, math.IsNaN(conditions.ToNumber(template.Undefined)))
	assert.True(t, math.IsNaN(conditions.ToNumber(map[string]any{})))
}
