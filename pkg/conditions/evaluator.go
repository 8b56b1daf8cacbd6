// Package conditions evaluates the single comparisons used by condition steps.
package conditions

import (
	"encoding/json"
	"math"
	"reflect"
	"strings"

	"github.com/dukex/autoflow/pkg/template"
	"github.com/spf13/cast"
)

// Operator names a comparison.
type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorNotEquals   Operator = "not_equals"
	OperatorContains    Operator = "contains"
	OperatorGreaterThan Operator = "greater_than"
	OperatorLessThan    Operator = "less_than"
)

// Evaluate compares actual, usually a value resolved from the execution context,
// against the configured expected value. Unknown operators evaluate to false.
func Evaluate(operator string, expected, actual any) bool {
	switch Operator(operator) {
	case OperatorEquals:
		return StrictEqual(expected, actual)
	case OperatorNotEquals:
		return !StrictEqual(expected, actual)
	case OperatorContains:
		if isAbsent(actual) {
			return false
		}

		return strings.Contains(template.Stringify(actual), expectedText(expected))
	case OperatorGreaterThan:
		return ToNumber(actual) > ToNumber(expected)
	case OperatorLessThan:
		return ToNumber(actual) < ToNumber(expected)
	default:
		return false
	}
}

// StrictEqual compares without type coercion. All numeric kinds count as one
// number type, so 100 and 100.0 are equal but 100 and "100" are not.
// Maps and slices are never equal to each other, matching reference semantics.
func StrictEqual(a, b any) bool {
	if isAbsent(a) || isAbsent(b) {
		return isAbsent(a) && isAbsent(b) && template.IsUndefined(a) == template.IsUndefined(b)
	}

	if isNumber(a) && isNumber(b) {
		x, y := ToNumber(a), ToNumber(b)

		return x == y
	}

	switch x := a.(type) {
	case string:
		y, ok := b.(string)

		return ok && x == y
	case bool:
		y, ok := b.(bool)

		return ok && x == y
	}

	return false
}

// ToNumber coerces a value to a float64. Values that have no numeric meaning
// become NaN, which makes every ordering comparison false.
func ToNumber(v any) float64 {
	switch value := v.(type) {
	case nil:
		return 0
	case bool:
		if value {
			return 1
		}

		return 0
	case json.Number:
		n, err := value.Float64()
		if err != nil {
			return math.NaN()
		}

		return n
	case string:
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return 0
		}

		n, err := cast.ToFloat64E(trimmed)
		if err != nil {
			return math.NaN()
		}

		return n
	}

	if template.IsUndefined(v) || !isNumber(v) {
		return math.NaN()
	}

	n, err := cast.ToFloat64E(v)
	if err != nil {
		return math.NaN()
	}

	return n
}

// expectedText keeps a missing expected value from matching every string.
func expectedText(v any) string {
	switch {
	case v == nil:
		return "null"
	case template.IsUndefined(v):
		return "undefined"
	default:
		return template.Stringify(v)
	}
}

func isAbsent(v any) bool {
	return v == nil || template.IsUndefined(v)
}

func isNumber(v any) bool {
	if v == nil {
		return false
	}

	if _, ok := v.(json.Number); ok {
		return true
	}

	switch reflect.TypeOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
